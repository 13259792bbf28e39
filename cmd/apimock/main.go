package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/liuwenjie/api-mock-server/internal/app"
)

func main() {
	cfg := app.DefaultConfig()
	configPath := flag.String("config", "", "optional YAML config file")
	flag.StringVar(&cfg.ArchivePath, "archive", cfg.ArchivePath, "path to the recorded HAR archive")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.IntVar(&cfg.TraceSize, "trace-size", cfg.TraceSize, "number of trace entries to keep")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Filter, "filter", cfg.Filter, "expr predicate selecting archive entries, e.g. 'status == 200'")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload the index when the archive file changes")
	flag.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "requests per second per client, 0 disables")
	flag.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "rate limit burst size")
	flag.Parse()

	if *configPath != "" {
		merged, err := mergeConfigFile(*configPath, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = merged
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// mergeConfigFile loads the config file over defaults, then re-applies any
// flags explicitly set on the command line so they win over the file.
func mergeConfigFile(path string, flagCfg app.Config) (app.Config, error) {
	merged := app.DefaultConfig()
	if err := merged.LoadFile(path); err != nil {
		return merged, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "archive":
			merged.ArchivePath = flagCfg.ArchivePath
		case "port":
			merged.Port = flagCfg.Port
		case "trace-size":
			merged.TraceSize = flagCfg.TraceSize
		case "log-level":
			merged.LogLevel = flagCfg.LogLevel
		case "filter":
			merged.Filter = flagCfg.Filter
		case "watch":
			merged.Watch = flagCfg.Watch
		case "rate-limit":
			merged.RateLimit = flagCfg.RateLimit
		case "rate-burst":
			merged.RateBurst = flagCfg.RateBurst
		}
	})
	return merged, nil
}
