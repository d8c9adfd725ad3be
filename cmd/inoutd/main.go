package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alverad/inout/internal/audit"
	"github.com/alverad/inout/internal/catalog"
	"github.com/alverad/inout/internal/config"
	"github.com/alverad/inout/internal/daemon"
	"github.com/alverad/inout/internal/logger"
	"github.com/alverad/inout/internal/watcher"
	"github.com/alverad/inout/pkg/inout"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inoutd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("INOUT_CONFIG")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	lifecycle := daemon.NewLifecycle(
		filepath.Join(filepath.Dir(cfg.PIDPath), "daemon.lock"),
		cfg.PIDPath,
		cfg.SocketPath,
	)
	if err := lifecycle.Acquire(); err != nil {
		return err
	}
	defer lifecycle.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var auditStore *audit.Store
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit.DBPath)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer auditStore.Close()

		if cfg.Audit.RetainDays > 0 {
			retain := time.Duration(cfg.Audit.RetainDays) * 24 * time.Hour
			if purged, err := auditStore.Purge(retain); err == nil && purged > 0 {
				logger.Info("purged old audit events", "count", purged)
			}
		}

		recorder = audit.NewRecorder(auditStore)
		recorder.Attach(inout.GlobalStore())
		defer recorder.Close()
	}

	var loader *catalog.Loader
	if len(cfg.CatalogDirs) > 0 {
		loader = catalog.NewLoader(cfg.CatalogDirs, inout.GlobalStore())
		if err := loader.Load(); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		defer loader.Unload()
	}

	if loader != nil && cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, loader)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		for _, dir := range cfg.CatalogDirs {
			if err := w.AddDir(dir); err != nil {
				logger.Warn("cannot watch catalog dir", "dir", dir, "error", err)
			}
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
	}

	d := daemon.New(cfg.SocketPath, daemon.NewHandler(auditStore, loader))
	if err := d.Start(ctx); err != nil {
		return err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		d.Shutdown()
	}()

	d.Wait()
	return nil
}
