package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rezgo/internal/app"
	"rezgo/internal/bus"
	"rezgo/internal/capture"
	"rezgo/internal/config"
	"rezgo/internal/connectors"
	"rezgo/internal/lcu"
	"rezgo/internal/logging"
	"rezgo/internal/notifications"
	"rezgo/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run overlay", "error", err)
		os.Exit(1)
	}
}

func run() error {
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

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging.Level, cfg.Logging.LogToFile, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("overlay")
	logger.Info("starting overlay", "version", app.BuildVersionWithDate())

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("close sqlite", "error", closeErr)
		}
	}()
	captureRepo := persistence.NewCaptureRepo(db)

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	connector := lcu.NewConnector(logMgr.Logger("lcu"), cfg.Client.FeedName, cfg.Client.InstallDir)
	feedSvc := app.NewFeedService(logMgr.Logger("feed"), b, connector, cfg.Client.InstallDir != "")
	if err := feedSvc.Start(ctx); err != nil {
		return fmt.Errorf("start feed service: %w", err)
	}

	sender := notifications.NewBeeepSender(app.Name, logMgr.Logger("notifications"))
	notifySvc := app.NewNotificationService(b, func() config.AppConfig { return cfg }, sender, logMgr.Logger("app.notifications"))
	notifySvc.Start(ctx)

	recDone := make(chan struct{})
	if cfg.Capture.AutoRecord {
		outputDir := strings.TrimSpace(cfg.Capture.OutputDir)
		if outputDir == "" {
			outputDir = paths.CapturesDir
		}
		go func() {
			defer close(recDone)
			autoRecord(ctx, logMgr.Logger("capture"), b, captureRepo, outputDir)
		}()
	} else {
		close(recDone)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	<-recDone

	return nil
}

// autoRecord records every feed session into its own capture file and
// catalogs the result.
func autoRecord(ctx context.Context, logger *slog.Logger, b bus.MessageBus, repo *persistence.CaptureRepo, outputDir string) {
	rawSub := b.Subscribe(connectors.TopicRawFrame)
	endedSub := b.Subscribe(connectors.TopicFeedEnded)
	defer b.Unsubscribe(rawSub, connectors.TopicRawFrame)
	defer b.Unsubscribe(endedSub, connectors.TopicFeedEnded)

	var rec *capture.Recorder
	finish := func(terminal bool) {
		if rec == nil {
			return
		}
		if terminal {
			if err := rec.RecordTerminal(); err != nil {
				logger.Error("record terminal marker", "error", err)
			}
		}
		finalizeAndCatalog(logger, rec, repo)
		rec = nil
	}
	defer finish(false)

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawSub:
			if !ok {
				return
			}
			frame, ok := raw.(connectors.RawFrame)
			if !ok {
				continue
			}
			if rec == nil {
				path := filepath.Join(outputDir, capture.DefaultFilename())
				rec = capture.NewRecorder(logger, path)
				logger.Info("session started, recording", "path", path)
			}
			if err := rec.Record(json.RawMessage(frame.Data)); err != nil {
				logger.Error("record event", "error", err)
			}
		case _, ok := <-endedSub:
			if !ok {
				return
			}
			finish(true)
		}
	}
}

// finalizeAndCatalog closes out the capture file and stores a catalog
// record. It runs on shutdown too, so it uses its own context.
func finalizeAndCatalog(logger *slog.Logger, rec *capture.Recorder, repo *persistence.CaptureRepo) {
	count := rec.Count()
	startedAt := parseRFC3339(rec.StartTime())
	if err := rec.Finalize(); err != nil {
		logger.Error("finalize capture", "error", err)

		return
	}
	if count == 0 {
		return
	}

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
