// Command saltd runs the verification-and-derivation daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SuiJapan/sui-zklogin-app/internal/config"
	"github.com/SuiJapan/sui-zklogin-app/internal/platform/privacylog"
	"github.com/SuiJapan/sui-zklogin-app/internal/salt"
	"github.com/SuiJapan/sui-zklogin-app/internal/saltservice"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	addr := flag.String("addr", "", "listen address override, e.g. :3001")
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("saltd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "saltd: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Service.LogLevel)

	seed, err := salt.LoadSeed(cfg.Service.Seed, cfg.Service.SeedMnemonic)
	if err != nil {
		logger.Error("seed configuration invalid", "err", err)
		os.Exit(1)
	}

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Service.Port)
	}
	srv, err := saltservice.NewServer(saltservice.Options{
		Addr:       listen,
		Seed:       seed,
		AllowedIss: cfg.Service.ExpectedIss,
		AllowedAud: cfg.Service.ExpectedAud,
		RateRPS:    cfg.Service.RateRPS,
		RateBurst:  cfg.Service.RateBurst,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("saltd failed to initialize", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("saltd starting", "addr", listen)
	if err := srv.Run(ctx); err != nil {
		logger.Error("saltd failed", "err", err)
		os.Exit(1)
	}
	logger.Info("saltd stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(base))
}
