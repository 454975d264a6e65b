package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/cli"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/server"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp("minicd")
	app.Synopsis = "[options]"
	app.Description = "Serves the MiniC compiler over HTTP: GET /api/info and POST /api/run."
	app.Authors = []string{"AfzalSurti"}
	app.Repository = "<https://github.com/AfzalSurti/Mini-C-Compiler>"
	app.Since = 2025

	var (
		listen     string
		configPath string
		debug      bool
	)
	fs := app.FlagSet
	fs.String(&listen, "listen", "l", "", "Address to listen on, overriding the config file.", "addr")
	fs.String(&configPath, "config", "c", "", "Read settings from a TOML file.", "file")
	fs.Bool(&debug, "debug", "", false, "Use a development logger and log every phase.")

	app.Action = func(args []string) error {
		cfg := config.NewConfig()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(app.Stderr, err)
				return err
			}
			cfg = loaded
		}
		if listen != "" {
			cfg.Listen = listen
		}

		newLogger := zap.NewProduction
		if debug {
			newLogger = zap.NewDevelopment
		}
		log, err := newLogger()
		if err != nil {
			fmt.Fprintln(app.Stderr, err)
			return err
		}
		defer log.Sync()

		return serve(cfg, log)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(cfg, log.Named("server")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Listen), zap.String("default_mode", string(cfg.DefaultMode)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
