package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rezgo/internal/app"
	"rezgo/internal/logging"
	"rezgo/internal/persistence"
	"rezgo/internal/replay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		capturePath string
		addr        string
	)
	flag.StringVar(&capturePath, "capture", "", "path to a champ select capture file")
	flag.StringVar(&addr, "addr", "127.0.0.1:18080", "address for websocket + health server")
	flag.Parse()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure("info", false, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("replay")

	if capturePath == "" {
		selected, err := chooseCapture(paths, logger)
		if err != nil {
			return fmt.Errorf("no capture selected: %w", err)
		}
		capturePath = selected
	}

	session, err := replay.LoadCapture(capturePath)
	if err != nil {
		return fmt.Errorf("load capture: %w", err)
	}
	steps := replay.BuildSteps(session)
	if len(steps) == 0 {
		return fmt.Errorf("capture has no steps")
	}

	hub := replay.NewHub(logMgr.Logger("hub"))
	replaySession := replay.NewSession(steps, hub, capturePath, session.StartTime)
	server := replay.NewServer(logger, replaySession, hub)

	fmt.Printf("Loaded %d steps from %s (start: %s)\n", len(steps), capturePath, session.StartTime)
	fmt.Printf("Websocket: ws://%s/ws | Health: http://%s/health\n", addr, addr)
	fmt.Println("Commands: next, prev, jump <n>, send <n>, reset, inspect, current, quit, help")

	go func() {
		if err := server.Start(addr); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	console := replay.NewConsole(replaySession, os.Stdin, os.Stdout)
	console.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}

	return nil
}

// chooseCapture offers the cataloged captures first and falls back to
// globbing the captures directory and the working directory.
func chooseCapture(paths app.Paths, logger *slog.Logger) (string, error) {
	candidates := catalogCaptures(paths, logger)
	if len(candidates) == 0 {
		var err error
		candidates, err = discoverCaptures(paths)
		if err != nil {
			return "", err
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no capture files found; pass -capture")
	}

	if len(candidates) == 1 {
		fmt.Printf("Found capture: %s\n", candidates[0])

		return candidates[0], nil
	}

	fmt.Println("Select a capture to load:")
	for i, p := range candidates {
		fmt.Printf("  [%d] %s\n", i+1, p)
	}
	fmt.Print("Enter number (default 1): ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return candidates[0], nil
	}
	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return candidates[0], nil
	}

	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(candidates) {
		fmt.Println("Invalid selection, defaulting to 1")

		return candidates[0], nil
	}

	return candidates[idx-1], nil
}

// catalogCaptures lists recent captures from the sqlite catalog, skipping
// files that no longer exist on disk.
func catalogCaptures(paths app.Paths, logger *slog.Logger) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		logger.Debug("open capture catalog", "error", err)

		return nil
	}
	defer func() { _ = db.Close() }()

	records, err := persistence.NewCaptureRepo(db).ListRecent(ctx, 20)
	if err != nil {
		logger.Debug("list capture catalog", "error", err)

		return nil
	}

	var out []string
	for _, rec := range records {
		if _, err := os.Stat(rec.Path); err == nil {
			out = append(out, rec.Path)
		}
	}

	return out
}

func discoverCaptures(paths app.Paths) ([]string, error) {
	patterns := []string{
		filepath.Join(paths.CapturesDir, "*.json"),
		filepath.Join("captures", "*.json"),
		"*.json",
	}

	seen := make(map[string]struct{})
	var results []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			results = append(results, m)
		}
	}

	return results, nil
}
