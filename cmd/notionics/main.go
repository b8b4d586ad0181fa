package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"notionics/internal/config"
	"notionics/internal/export"
	"notionics/internal/feed"
	"notionics/internal/ics"
	appLog "notionics/internal/log"
	"notionics/internal/metrics"
	"notionics/internal/notion"
	"notionics/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	export     bool
	exportPath string
	schedule   string
	probe      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.SetFormat(conf.Log.Format)
	appLog.SetLevel(appLog.ParseLevel(conf.Log.Level))
	appLog.Info("notionics starting", "version", version)

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.exportPath != "" {
		conf.Export.Path = flags.exportPath
	}
	if flags.schedule != "" {
		conf.Export.Schedule = flags.schedule
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"database_id", conf.Notion.DatabaseID,
		"feed_name", conf.Feed.Name,
		"timezone", conf.Feed.TimeZone,
		"window_size", conf.Feed.WindowSize,
		"cache_ttl", conf.Feed.CacheTTL.String(),
		"date_properties", conf.Feed.DateProperties,
		"export", flags.export,
		"probe", flags.probe,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := notion.NewClient(notion.Config{
		Token:             conf.Notion.Token,
		BaseURL:           conf.Notion.BaseURL,
		Version:           conf.Notion.Version,
		RequestsPerSecond: conf.Notion.RequestsPerSecond,
		Timeout:           conf.Notion.Timeout,
	})

	if flags.probe {
		if err := notion.Probe(ctx, client, conf.Notion.DatabaseID, os.Stdout); err != nil {
			appLog.Error("probe failed", err)
			os.Exit(1)
		}
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	assembler := &feed.Assembler{
		Source:     client,
		DatabaseID: conf.Notion.DatabaseID,
		PageSize:   conf.Notion.PageSize,
		Mapper: &ics.Mapper{
			DateProperties:      conf.Feed.DateProperties,
			DescriptionProperty: conf.Feed.DescriptionProperty,
			LocationProperty:    conf.Feed.LocationProperty,
		},
		Header: ics.Header{
			ProductID: conf.Feed.ProductID,
			Name:      conf.Feed.Name,
			TimeZone:  conf.Feed.TimeZone,
		},
		WindowSize: conf.Feed.WindowSize,
		Metrics:    rec,
	}

	if flags.export {
		if err := runExport(ctx, assembler, conf.Export); err != nil {
			appLog.Error("export failed", err, "path", conf.Export.Path)
			os.Exit(1)
		}
		return
	}

	cache := feed.NewCache(assembler.Assemble, conf.Feed.CacheTTL, feed.WithMetrics(rec))
	srv := web.NewServer(conf, cache, rec, reg)
	if err := web.Run(ctx, srv, conf.Listen, 10*time.Second); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("notionics exiting")
}

// runExport writes the full feed once, or keeps re-exporting on the
// configured schedule until ctx is cancelled.
func runExport(ctx context.Context, a *feed.Assembler, conf config.ExportConfig) error {
	e := &export.Exporter{Build: a.Assemble, Path: conf.Path}
	if conf.Schedule == "" {
		_, err := e.Export(ctx)
		return err
	}
	return export.Schedule(ctx, e, conf.Schedule)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/notionics/config.yaml", "Path to config file (empty: environment only)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.export, "export", false, "Write the full feed to a static file instead of serving HTTP")
	flag.StringVar(&cfg.exportPath, "export-path", "", "Static export path (overrides config if set)")
	flag.StringVar(&cfg.schedule, "schedule", "", "Cron expression for repeated exports (overrides config if set)")
	flag.BoolVar(&cfg.probe, "probe", false, "Print the first records' property names and date values, then exit")

	flag.Parse()

	return cfg
}
