package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rezgo/internal/app"
	"rezgo/internal/capture"
	"rezgo/internal/config"
	"rezgo/internal/lcu"
	"rezgo/internal/logging"
	"rezgo/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run capture", "error", err)
		os.Exit(1)
	}
}

func run() error {
	output := flag.String("o", "", "capture output file (default: a timestamped file in the captures dir)")
	installDir := flag.String("install-dir", "", "client install directory (default: discover from process list)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*installDir) != "" {
		cfg.Client.InstallDir = strings.TrimSpace(*installDir)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging.Level, false, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("capture")

	outputFile := strings.TrimSpace(*output)
	if outputFile == "" {
		outputFile = filepath.Join(paths.CapturesDir, capture.DefaultFilename())
	}

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()
	repo := persistence.NewCaptureRepo(db)

	connector := lcu.NewConnector(logMgr.Logger("lcu"), cfg.Client.FeedName, cfg.Client.InstallDir)
	if err := connector.Start(); err != nil {
		return fmt.Errorf("start connector: %w", err)
	}
	defer connector.Stop()

	rec := capture.NewRecorder(logger, outputFile)

	fmt.Println("Starting champion select capture...")
	fmt.Printf("Output file: %s\n", outputFile)
	fmt.Println("Waiting for client connection and champion select...")
	fmt.Println("Press Ctrl+C to stop capturing")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping capture...")
			finish(logger, rec, repo, false)

			return nil
		case info, ok := <-connector.OnConnect():
			if !ok {
				return nil
			}
			fmt.Printf("Connected to client at %s:%s\n", info.Host, info.Port)
		case _, ok := <-connector.OnDisconnect():
			if !ok {
				return nil
			}
			fmt.Println("Disconnected from client")
			if rec.Active() {
				finish(logger, rec, repo, false)

				return nil
			}
		case ev, ok := <-connector.OnFeedEvent():
			if !ok {
				return nil
			}
			if !rec.Active() {
				fmt.Println("\n=== Champion Select Started ===")
				fmt.Println("Capturing raw events...")
			}
			if err := rec.Record(json.RawMessage(ev.Raw)); err != nil {
				logger.Error("record event", "error", err)

				continue
			}
			fmt.Printf("Event #%d captured\n", rec.Count())
		case _, ok := <-connector.OnFeedEnded():
			if !ok {
				return nil
			}
			fmt.Println("\n=== Champion Select Ended ===")
			finish(logger, rec, repo, true)

			return nil
		}
	}
}

// finish closes out the capture and catalogs it when any events landed.
func finish(logger *slog.Logger, rec *capture.Recorder, repo *persistence.CaptureRepo, terminal bool) {
	if terminal && rec.Active() {
		if err := rec.RecordTerminal(); err != nil {
			logger.Error("record terminal marker", "error", err)
		}
	}

	count := rec.Count()
	startedAt := parseRFC3339(rec.StartTime())
	if err := rec.Finalize(); err != nil {
		logger.Error("finalize capture", "error", err)

		return
	}
	if count == 0 {
		fmt.Println("No events captured")

		return
	}

	fmt.Printf("Capture saved to: %s (%d events)\n", rec.Path(), count)

	record := persistence.NewCaptureRecord(rec.Path(), startedAt, time.Now(), count)
	if err := repo.Insert(context.Background(), record); err != nil {
		logger.Error("catalog capture", "error", err)
	}
}

func parseRFC3339(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}
