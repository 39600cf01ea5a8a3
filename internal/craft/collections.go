package craft

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// CollectionItem is one row of a Craft collection
type CollectionItem struct {
	ID         string                 `json:"id,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Properties map[string]interface{} `json:"properties"`
}

type itemsResponse struct {
	Items []CollectionItem `json:"items"`
}

type itemsAddRequest struct {
	Items []CollectionItem `json:"items"`
}

type itemsUpdateRequest struct {
	ItemsToUpdate []CollectionItem `json:"itemsToUpdate"`
}

// CollectionItems lists every item of a collection block
func (c *Client) CollectionItems(ctx context.Context, collectionID string) ([]CollectionItem, error) {
	var resp itemsResponse
	if err := c.do(ctx, "GET", c.spacePath("/collections/%s/items", collectionID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddCollectionItems appends items and returns them with their new ids
func (c *Client) AddCollectionItems(ctx context.Context, collectionID string, items []CollectionItem) ([]CollectionItem, error) {
	var resp itemsResponse
	if err := c.do(ctx, "POST", c.spacePath("/collections/%s/items", collectionID), itemsAddRequest{Items: items}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UpdateCollectionItems patches existing items by id
func (c *Client) UpdateCollectionItems(ctx context.Context, collectionID string, items []CollectionItem) error {
	return c.do(ctx, "PATCH", c.spacePath("/collections/%s/items", collectionID), itemsUpdateRequest{ItemsToUpdate: items}, nil)
}

// MappingCollection persists mapping entries as items of a collection
type MappingCollection struct {
	client       *Client
	collectionID string
}

// NewMappingCollection creates a mapping backend over a collection block
func NewMappingCollection(client *Client, collectionID string) *MappingCollection {
	return &MappingCollection{client: client, collectionID: collectionID}
}

// ReadAll returns the entries stored in the collection
func (m *MappingCollection) ReadAll(ctx context.Context) ([]domain.MappingEntry, error) {
	items, err := m.client.CollectionItems(ctx, m.collectionID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.MappingEntry, 0, len(items))
	for _, it := range items {
		p := it.Properties
		e := domain.MappingEntry{
			LocalID:         prop(p, "craft_id"),
			RemoteID:        prop(p, "motion_id"),
			Type:            domain.EntityType(prop(p, "type")),
			Category:        prop(p, "workspace"),
			Title:           it.Title,
			LocalUpdatedAt:  parseTimestamp(prop(p, "craft_updated_at")),
			RemoteUpdatedAt: parseTimestamp(prop(p, "motion_updated_at")),
			RecordID:        it.ID,
		}
		if ts := parseTimestamp(prop(p, "last_synced")); ts != nil {
			e.LastSyncedAt = *ts
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteOne adds an item for a new entry or patches the existing one. An
// entry without a record id is matched to a stored item by type and craft id.
func (m *MappingCollection) WriteOne(ctx context.Context, e domain.MappingEntry) (string, error) {
	item := CollectionItem{
		ID:    e.RecordID,
		Title: e.Title,
		Properties: map[string]interface{}{
			"craft_id":          e.LocalID,
			"motion_id":         e.RemoteID,
			"type":              string(e.Type),
			"workspace":         e.Category,
			"last_synced":       e.LastSyncedAt.UTC().Format(time.RFC3339),
			"craft_updated_at":  formatTimestamp(e.LocalUpdatedAt),
			"motion_updated_at": formatTimestamp(e.RemoteUpdatedAt),
		},
	}
	if item.Title == "" {
		item.Title = e.LocalID
	}

	if item.ID == "" {
		id, err := m.find(ctx, e.Key())
		if err != nil {
			return "", err
		}
		item.ID = id
	}

	if item.ID != "" {
		if err := m.client.UpdateCollectionItems(ctx, m.collectionID, []CollectionItem{item}); err != nil {
			return "", err
		}
		return item.ID, nil
	}

	added, err := m.client.AddCollectionItems(ctx, m.collectionID, []CollectionItem{item})
	if err != nil {
		return "", err
	}
	if len(added) == 0 || added[0].ID == "" {
		return "", fmt.Errorf("%w: collection returned no item id", domain.ErrValidation)
	}
	return added[0].ID, nil
}

// find returns the id of the item already stored for key, if any
func (m *MappingCollection) find(ctx context.Context, key domain.MappingKey) (string, error) {
	items, err := m.client.CollectionItems(ctx, m.collectionID)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		if prop(it.Properties, "type") == string(key.Type) && prop(it.Properties, "craft_id") == key.LocalID {
			return it.ID, nil
		}
	}
	return "", nil
}

// NotificationCollection reports sync runs as rows of a collection
type NotificationCollection struct {
	client       *Client
	collectionID string
}

// NewNotificationCollection creates a run reporter over a collection block
func NewNotificationCollection(client *Client, collectionID string) *NotificationCollection {
	return &NotificationCollection{client: client, collectionID: collectionID}
}

// Report appends one notification row describing r
func (n *NotificationCollection) Report(ctx context.Context, r domain.RunResult) error {
	title := "Sync completed"
	if r.Outcome() == domain.OutcomeError {
		title = "Sync failed"
	}
	at := r.FinishedAt
	if at.IsZero() {
		at = n.client.now()
	}
	at = at.In(n.client.loc)

	item := CollectionItem{
		Title: title,
		Properties: map[string]interface{}{
			"date":          at.Format(domain.DateLayout),
			"time":          at.Format("15:04"),
			"type":          string(r.Outcome()),
			"projects":      r.MappedProjects,
			"tasks_created": r.Tasks.Created,
			"tasks_updated": r.Tasks.Updated,
			"conflicts":     r.Conflicts,
			"notes":         r.Notes(),
		},
	}
	_, err := n.client.AddCollectionItems(ctx, n.collectionID, []CollectionItem{item})
	return err
}

func prop(p map[string]interface{}, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
