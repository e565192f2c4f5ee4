package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"festcal/internal/config"
	appLog "festcal/internal/log"
	"festcal/internal/pipeline"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	output     string
	schedule   bool
	verbose    bool
}

func main() {
	appLog.Info("festcal starting", "version", "1.0.0")

	flags := parseFlags()

	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --output overrides the config file if provided.
	if flags.output != "" {
		conf.OutputPath = flags.output
	}

	if conf.LogFile != "" {
		if err := appLog.SetOutputFile(conf.LogFile); err != nil {
			appLog.Error("failed to open log file", err, "log_file", conf.LogFile)
			os.Exit(1)
		}
	}

	appLog.Info("effective config",
		"base_url", conf.BaseURL,
		"output", conf.OutputPath,
		"timezone", conf.Timezone,
		"reference_year", conf.ReferenceYear,
		"venue_count", len(conf.Venues),
		"refresh", conf.RefreshCron,
		"schedule", flags.schedule,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	pipe := &pipeline.Pipeline{Config: conf}

	if !flags.schedule {
		if err := pipe.Run(ctx); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
		appLog.Info("festcal exiting")
		return
	}

	// Scheduled mode: run immediately, then on the configured cron schedule
	// until a signal arrives. A failed run keeps the previous feed and the
	// schedule alive.
	if err := pipe.Run(ctx); err != nil {
		appLog.Error("initial run failed", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := pipe.Run(ctx); err != nil {
			appLog.Error("scheduled run failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("festcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "festcal.yaml", "Path to config file")
	flag.StringVar(&cfg.output, "output", "", "Feed output path (overrides config if set)")
	flag.BoolVar(&cfg.schedule, "schedule", false, "Keep running and refresh on the configured cron schedule")
	flag.BoolVar(&cfg.verbose, "verbose", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
