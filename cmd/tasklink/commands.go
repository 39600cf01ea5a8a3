package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/tasklink/internal/config"
	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/scheduler"
	"github.com/hochfrequenz/tasklink/internal/watch"
	"github.com/hochfrequenz/tasklink/tui"
	"github.com/hochfrequenz/tasklink/web/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	servePort      int
	mappingsType   string
	mappingsFormat string
)

func init() {
	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs with the web API and trigger watcher",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync pass and exit",
		RunE:  runOnce,
	}
	rootCmd.AddCommand(runCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last sync and mapping counts",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// mappings command
	mappingsCmd := &cobra.Command{
		Use:   "mappings",
		Short: "List linked projects and tasks",
		RunE:  runMappings,
	}
	mappingsCmd.Flags().StringVar(&mappingsType, "type", "", "filter by type (project, task)")
	mappingsCmd.Flags().StringVar(&mappingsFormat, "format", "table", "output format (table, yaml, json)")
	rootCmd.AddCommand(mappingsCmd)

	// trigger command
	triggerCmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running server for an immediate sync",
		RunE:  runTrigger,
	}
	rootCmd.AddCommand(triggerCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch TUI dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Web.Port = servePort
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, _ := cfg.Location()
	cadence, err := scheduler.FromConfig(cfg.Schedule, loc)
	if err != nil {
		return fmt.Errorf("%w: schedule: %v", domain.ErrFatalConfig, err)
	}
	sched := scheduler.New(a.runPass, cadence, scheduler.Options{
		RunOnStart: cfg.Schedule.RunOnStart,
		Logger:     a.logger,
	})

	var watcher *watch.TriggerWatcher
	if cfg.General.TriggerFile != "" {
		watcher, err = watch.NewTriggerWatcher(cfg.General.TriggerFile, func() { sched.ForceSync() }, a.logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Web.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
		server := api.NewServer(a.storage, a.storage, sched, addr, a.logger)
		a.reporter.Add(server)
		g.Go(func() error { return server.Run(gctx) })
	}

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	sched.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Printf("shutting down, waiting for the current sync to finish")
		sched.Stop()
		return nil
	})

	return g.Wait()
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.runPass(context.WithoutCancel(ctx))
	printRun(cmd.OutOrStdout(), r, time.Now())
	for _, e := range r.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  ! %s\n", e)
	}
	if r.Failure != "" {
		return fmt.Errorf("sync failed in %s: %s", r.FailedPhase, r.Failure)
	}
	return nil
}

func printRun(w io.Writer, r domain.RunResult, now time.Time) {
	fmt.Fprintf(w, "Last sync: %s (%s) - %s\n",
		humanize.RelTime(r.StartedAt, now, "ago", "from now"), r.Outcome(), r.Notes())
}

// openReadOnly opens the storage for commands that only read
func openReadOnly(ctx context.Context) (*config.Config, *storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	craftClient, err := newCraftClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStorage(ctx, cfg, craftClient, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, st, err := openReadOnly(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	runs, err := st.ListRuns(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "Last sync: never")
	} else {
		printRun(out, runs[0], time.Now())
	}

	entries, err := st.List(ctx)
	if err != nil {
		return err
	}
	var projects, tasks int
	for _, e := range entries {
		if e.Type == domain.TypeProject {
			projects++
		} else {
			tasks++
		}
	}
	fmt.Fprintf(out, "Mappings: %d projects | %d tasks\n", projects, tasks)
	return nil
}

// mappingRow is the export shape of a mapping entry
type mappingRow struct {
	Type         string    `json:"type" yaml:"type"`
	Title        string    `json:"title" yaml:"title"`
	Category     string    `json:"category" yaml:"category"`
	LocalID      string    `json:"local_id" yaml:"local_id"`
	RemoteID     string    `json:"remote_id" yaml:"remote_id"`
	LastSyncedAt time.Time `json:"last_synced_at" yaml:"last_synced_at"`
}

func runMappings(cmd *cobra.Command, args []string) error {
	var filter domain.EntityType
	if mappingsType != "" {
		t, ok := domain.ParseEntityType(mappingsType)
		if !ok {
			return fmt.Errorf("unknown type %q (want project or task)", mappingsType)
		}
		filter = t
	}

	ctx := cmd.Context()
	_, st, err := openReadOnly(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(ctx)
	if err != nil {
		return err
	}

	var rows []mappingRow
	for _, e := range entries {
		if filter != "" && e.Type != filter {
			continue
		}
		rows = append(rows, mappingRow{
			Type:         string(e.Type),
			Title:        e.Title,
			Category:     e.Category,
			LocalID:      e.LocalID,
			RemoteID:     e.RemoteID,
			LastSyncedAt: e.LastSyncedAt,
		})
	}
	return writeMappings(cmd.OutOrStdout(), mappingsFormat, rows)
}

func writeMappings(w io.Writer, format string, rows []mappingRow) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rows)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tTITLE\tCATEGORY\tLOCAL\tREMOTE\tSYNCED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Type, r.Title, r.Category, r.LocalID, r.RemoteID, humanize.Time(r.LastSyncedAt))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
	}
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.General.TriggerFile != "" {
		if err := watch.Touch(cfg.General.TriggerFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Touched %s\n", cfg.General.TriggerFile)
		return nil
	}
	if !cfg.Web.Enabled {
		return errors.New("neither general.trigger_file nor the web API is configured")
	}
	return postSync(cmd.OutOrStdout(), fmt.Sprintf("http://%s:%d/api/sync", cfg.Web.Host, cfg.Web.Port))
}

func postSync(w io.Writer, url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("requesting sync: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintln(w, "Sync requested")
		return nil
	case http.StatusConflict:
		fmt.Fprintln(w, "A sync is already running")
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, st, err := openReadOnly(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var trigger func() error
	if cfg.General.TriggerFile != "" {
		trigger = func() error { return watch.Touch(cfg.General.TriggerFile) }
	} else if cfg.Web.Enabled {
		url := fmt.Sprintf("http://%s:%d/api/sync", cfg.Web.Host, cfg.Web.Port)
		trigger = func() error { return postSync(io.Discard, url) }
	}

	model := tui.NewModel(tui.ModelConfig{
		Source:  st,
		Trigger: trigger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
