package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryannaik/assetreuse/internal/keywords"
	"github.com/aryannaik/assetreuse/internal/orchestrator"
	"github.com/aryannaik/assetreuse/internal/probe"
	"github.com/aryannaik/assetreuse/internal/reuse"
	"github.com/aryannaik/assetreuse/internal/server"
)

type config struct {
	CatalogPath    string
	PreferLocal    bool
	EvergreenDays  int
	EpisodeDays    int
	Lenient        bool
	MinScore       float64
	HeuristicsFile string
	ChannelMix     string
	FFProbePath    string
	Port           string
	LogLevel       string
}

func loadConfig() config {
	_ = godotenv.Load()

	return config{
		CatalogPath:    envOrDefault("ASSET_CATALOG_PATH", "data/catalog.json"),
		PreferLocal:    envBool("ASSET_PREFER_LOCAL", true),
		EvergreenDays:  envInt("ASSET_REUSE_EVERGREEN_DAYS", 7),
		EpisodeDays:    envInt("ASSET_REUSE_EPISODE_DAYS", 30),
		Lenient:        envBool("ASSET_REUSE_LENIENT", false),
		MinScore:       envFloat("ASSET_MIN_SCORE", reuse.DefaultMinScore),
		HeuristicsFile: os.Getenv("ASSET_HEURISTICS_FILE"),
		ChannelMix:     os.Getenv("ASSET_CHANNEL_MIX"),
		FFProbePath:    envOrDefault("FFPROBE_PATH", "ffprobe"),
		Port:           envOrDefault("PORT", "8990"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	statsFlag := flag.Bool("stats", false, "Print catalog stats and exit")
	flushFlag := flag.Bool("flush-on-start", false, "Rewrite the catalog in the current format after loading")
	flag.Parse()

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	engine := reuse.New(engineConfig(cfg, logger))
	engine.EnsureLoaded()

	if *flushFlag {
		if err := engine.Flush(); err != nil {
			logger.Error("catalog flush failed", "error", err)
			os.Exit(1)
		}
		logger.Info("catalog flushed", "path", cfg.CatalogPath)
	}

	if *statsFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(engine.Stats()); err != nil {
			logger.Error("write stats", "error", err)
			os.Exit(1)
		}
		return
	}

	mixes, err := orchestrator.ParseMixes(cfg.ChannelMix)
	if err != nil {
		logger.Warn("ignoring ASSET_CHANNEL_MIX", "error", err)
		mixes = orchestrator.Mixes{}
	}
	planner := orchestrator.NewPlanner(engine, nil, mixes, logger)

	srv := server.New(cfg.Port, engine, planner, logger)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Info("server stopped", "reason", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := engine.Flush(); err != nil {
		logger.Error("catalog flush failed", "error", err)
	}

	logger.Info("goodbye")
}

func engineConfig(cfg config, logger *slog.Logger) reuse.Config {
	rc := reuse.DefaultConfig(cfg.CatalogPath)
	rc.PreferLocal = cfg.PreferLocal
	rc.EvergreenWindow = time.Duration(cfg.EvergreenDays) * 24 * time.Hour
	rc.EpisodeWindow = time.Duration(cfg.EpisodeDays) * 24 * time.Hour
	rc.Lenient = cfg.Lenient
	rc.MinScore = cfg.MinScore
	rc.Logger = logger

	if cfg.HeuristicsFile != "" {
		h, err := keywords.LoadHeuristics(cfg.HeuristicsFile)
		if err != nil {
			logger.Warn("using default heuristics", "file", cfg.HeuristicsFile, "error", err)
		}
		rc.Heuristics = &h
	}

	prober := probe.NewFFProbe(cfg.FFProbePath, 0)
	if prober.IsAvailable() {
		rc.Prober = prober
	} else {
		logger.Warn("ffprobe not found; video durations will not be probed", "binary", cfg.FFProbePath)
	}

	return rc
}
