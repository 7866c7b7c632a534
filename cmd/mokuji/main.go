// Package main is the Mokuji CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/mokuji/internal/catalog"
	"github.com/hyperjump/mokuji/internal/config"
	"github.com/hyperjump/mokuji/internal/enrich"
	"github.com/hyperjump/mokuji/internal/keyword"
	"github.com/hyperjump/mokuji/internal/pipeline"
	"github.com/hyperjump/mokuji/internal/server"
	"github.com/hyperjump/mokuji/internal/watcher"
	"github.com/hyperjump/mokuji/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mokuji/config.yaml"

// sweepInterval is how often retained extraction directories are checked
// against the retention window.
const sweepInterval = 10 * time.Minute

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "mokuji server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "courses":
		runCourses()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("mokuji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (package events, stage outcomes, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipe := components.Pipeline

	// Drop-directory auto-ingest: any .zip placed in a watched directory is
	// run through the same pipeline as an HTTP upload.
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(cfg.Watch.Directories, func(path string) {
			resp, err := pipe.ProcessArchive(context.Background(), path, filepath.Base(path))
			if err != nil {
				logger.Warn("drop-dir ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("drop-dir package ingested",
				zap.String("path", path),
				zap.String("manifest_status", string(resp.ManifestParsingStatus)),
				zap.String("course_id", resp.CourseID),
			)
		}, watchOpts...)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	// Periodic sweep of retained extraction directories.
	sweepDone := make(chan struct{})
	defer close(sweepDone)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepDone:
				return
			case <-ticker.C:
				n, err := pipe.SweepExpired()
				if err != nil {
					logger.Warn("extraction dir sweep failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("swept expired extraction dirs", zap.Int("removed", n))
				}
			}
		}
	}()

	srv := server.NewServer(pipe, components.Catalog, components.Index, &cfg.Server, &cfg.Uploads, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mokuji ingest [flags] <package.zip>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	resp, err := components.Pipeline.ProcessArchive(context.Background(), path, filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCourses() {
	fs := flag.NewFlagSet("courses", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 50, "number of courses to list")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := catalog.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Printf("Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	courses, err := store.ListCourses(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing failed: %v\n", err)
		os.Exit(1)
	}
	for _, c := range courses {
		fmt.Printf("%s  %-40s  scos=%d  source=%s\n", c.ID, c.Title, c.SCOCount, c.SourceFile)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mokuji delete [flags] <course-id>")
		os.Exit(1)
	}
	courseID := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := catalog.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Printf("Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	index, err := keyword.NewIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		fmt.Printf("Failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer index.Close()

	ctx := context.Background()
	if err := store.DeleteCourse(ctx, courseID); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := index.Delete(ctx, courseID); err != nil {
		fmt.Fprintf(os.Stderr, "Index cleanup failed: %v\n", err)
	}
	fmt.Printf("Course deleted: %s\n", courseID)
}

// Components holds initialized services.
type Components struct {
	Catalog  *catalog.Store
	Index    *keyword.Index
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := catalog.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	index, err := keyword.NewIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	enricher := enrich.NewClient(&cfg.Enrich, logger)
	pipe := pipeline.New(&cfg.Uploads, enricher, store, index, logger)

	return &Components{
		Catalog:  store,
		Index:    index,
		Pipeline: pipe,
	}, nil
}

func printUsage() {
	fmt.Println(`mokuji - SCORM package ingestion and course catalog service

Usage:
  mokuji server [flags]            Start the HTTP server
  mokuji ingest [flags] <zip>      Ingest a SCORM package from disk
  mokuji courses [flags]           List cataloged courses
  mokuji delete [flags] <id>       Delete a course from catalog and index
  mokuji version                   Show version
  mokuji help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mokuji/config.yaml)
  --debug            Enable debug logging (package events, stage outcomes, etc.)

Ingest Flags:
  --config string    Config file path

Courses Flags:
  --config string    Config file path
  --limit int        Number of courses to list (default: 50)

Examples:
  mokuji server
  mokuji ingest golf-course.zip
  mokuji courses
  mokuji delete 6e1f0c9e-...`)
}
