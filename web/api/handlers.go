package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// MappingResponse is the API response for a mapping entry
type MappingResponse struct {
	Type            string  `json:"type"`
	LocalID         string  `json:"local_id"`
	RemoteID        string  `json:"remote_id"`
	Category        string  `json:"category,omitempty"`
	Title           string  `json:"title,omitempty"`
	LastSyncedAt    string  `json:"last_synced_at"`
	LocalUpdatedAt  *string `json:"local_updated_at,omitempty"`
	RemoteUpdatedAt *string `json:"remote_updated_at,omitempty"`
}

// RunResponse is the API response for a sync run
type RunResponse struct {
	RunID          string               `json:"run_id"`
	StartedAt      string               `json:"started_at"`
	FinishedAt     *string              `json:"finished_at,omitempty"`
	Duration       string               `json:"duration"`
	Outcome        string               `json:"outcome"`
	Phase          string               `json:"phase"`
	FailedPhase    string               `json:"failed_phase,omitempty"`
	Failure        string               `json:"failure,omitempty"`
	Projects       domain.Counts        `json:"projects"`
	Tasks          domain.Counts        `json:"tasks"`
	Conflicts      int                  `json:"conflicts"`
	MappedProjects int                  `json:"mapped_projects"`
	Errors         []domain.EntityError `json:"errors,omitempty"`
	Notes          string               `json:"notes"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Running        bool         `json:"running"`
	NextRun        *string      `json:"next_run,omitempty"`
	LastRun        *RunResponse `json:"last_run,omitempty"`
	MappedProjects int          `json:"mapped_projects"`
	MappedTasks    int          `json:"mapped_tasks"`
}

// SyncResponse is the API response for a force-sync request
type SyncResponse struct {
	Accepted bool `json:"accepted"`
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mappingToResponse(e domain.MappingEntry) MappingResponse {
	return MappingResponse{
		Type:            string(e.Type),
		LocalID:         e.LocalID,
		RemoteID:        e.RemoteID,
		Category:        e.Category,
		Title:           e.Title,
		LastSyncedAt:    e.LastSyncedAt.UTC().Format(time.RFC3339),
		LocalUpdatedAt:  formatTime(e.LocalUpdatedAt),
		RemoteUpdatedAt: formatTime(e.RemoteUpdatedAt),
	}
}

func runToResponse(r domain.RunResult) RunResponse {
	return RunResponse{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:     formatTime(&r.FinishedAt),
		Duration:       r.Duration().Round(time.Millisecond).String(),
		Outcome:        string(r.Outcome()),
		Phase:          string(r.Phase),
		FailedPhase:    string(r.FailedPhase),
		Failure:        r.Failure,
		Projects:       r.Projects,
		Tasks:          r.Tasks,
		Conflicts:      r.Conflicts,
		MappedProjects: r.MappedProjects,
		Errors:         r.Errors,
		Notes:          r.Notes(),
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var resp StatusResponse
		if s.syncer != nil {
			st := s.syncer.Status()
			resp.Running = st.Running
			resp.NextRun = formatTime(&st.NextRun)
			if st.LastRun != nil {
				run := runToResponse(*st.LastRun)
				resp.LastRun = &run
			}
		}

		entries, err := s.mappings.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, e := range entries {
			if e.Type == domain.TypeProject {
				resp.MappedProjects++
			} else {
				resp.MappedTasks++
			}
		}

		writeJSON(w, resp)
	}
}

func (s *Server) listMappingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var filter domain.EntityType
		if v := r.URL.Query().Get("type"); v != "" {
			t, ok := domain.ParseEntityType(v)
			if !ok {
				writeError(w, http.StatusBadRequest, "type must be project or task")
				return
			}
			filter = t
		}
		category := r.URL.Query().Get("category")

		entries, err := s.mappings.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := make([]MappingResponse, 0, len(entries))
		for _, e := range entries {
			if filter != "" && e.Type != filter {
				continue
			}
			if category != "" && e.Category != category {
				continue
			}
			resp = append(resp, mappingToResponse(e))
		}
		writeJSON(w, resp)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		runs, err := s.runs.ListRuns(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			resp = append(resp, runToResponse(run))
		}
		writeJSON(w, resp)
	}
}

func (s *Server) syncHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.syncer == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not running")
			return
		}
		if !s.syncer.ForceSync() {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(SyncResponse{Accepted: true})
	}
}
