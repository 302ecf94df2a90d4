package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/annel0/pixel-canvas/internal/config"
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/storage"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		configPath  = flag.String("config", "", "Config file (.yaml or .toml), default $"+config.EnvConfigPath)
		command     = flag.String("cmd", "list", "Command: list, inspect, compact, export-json, import-json, delete, worlds")
		project     = flag.String("project", "", "Project name")
		file        = flag.String("file", "", "JSON file for export-json/import-json, '-' for stdout")
		compression = flag.String("compression", "", "Override payload compression: none, zstd")
		dumpMetrics = flag.Bool("metrics", false, "Print editor metrics after the command")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("❌ Ошибка загрузки конфигурации: %v", err)
		return 2
	}
	if *compression != "" {
		cfg.Storage.Compression = *compression
		if err := cfg.Validate(); err != nil {
			log.Printf("❌ %v", err)
			return 2
		}
	}

	logs := logging.NewLoggerManager(loggingOptions(cfg.Logging))
	defer logs.CloseAll()
	if err := logging.InitDefaultLogger("canvas-cli", loggingOptions(cfg.Logging)); err != nil {
		log.Printf("❌ Ошибка инициализации логирования: %v", err)
		return 2
	}
	defer logging.CloseDefaultLogger()

	repo, err := storage.NewBadgerRepo(cfg.Storage.GetDataPath(), logs.Storage())
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a := &app{cfg: cfg, repo: repo, logs: logs, out: os.Stdout, in: os.Stdin}
	if cfg.Metrics.Enabled {
		a.reg = reg
	}

	if err := a.run(ctx, *command, *project, *file); err != nil {
		logging.Error("команда %s: %v", *command, err)
		fmt.Fprintf(os.Stderr, "❌ %s failed: %v\n", *command, err)
		return 1
	}

	if *dumpMetrics && cfg.Metrics.Enabled {
		families, err := reg.Gather()
		if err != nil {
			log.Printf("❌ %v", err)
			return 1
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
				log.Printf("❌ %v", err)
				return 1
			}
		}
	}
	return 0
}

func loggingOptions(cfg config.LoggingConfig) logging.Options {
	opts := logging.DefaultOptions()
	opts.ConsoleLevel = logging.ParseLevel(cfg.Level)
	if cfg.Format != "" {
		opts.Format = cfg.Format
	}
	opts.Dir = cfg.Dir
	return opts
}
