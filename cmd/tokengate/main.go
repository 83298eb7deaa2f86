package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/server"
	"github.com/tokengate/tokengate/token/refresh"
	"github.com/tokengate/tokengate/token/refresh/redisrepo"
	refreshrepofake "github.com/tokengate/tokengate/token/refresh/repofake"
	"github.com/tokengate/tokengate/users"
	fakeuserrepo "github.com/tokengate/tokengate/users/repofake"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running server: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}

	log := newLogger(cfg.Service.Env)
	displayAppname(cfg.Service.AppName)

	refreshRepo, err := newRefreshRepo(cfg, log)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, newUserRepo(), refreshRepo, log)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Server.Address, Handler: srv}
	go listenAndServe(httpServer, log)
	waitForStopSignal()
	log.Info().Msg("shutting down")
	return shutdown(httpServer)
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
}

// newRefreshRepo selects the refresh-token set backend: Redis when an address
// is configured, otherwise the in-memory store (tokens do not survive a
// restart in that mode).
func newRefreshRepo(cfg *config.Config, log zerolog.Logger) (refresh.Repo, error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("no redis address configured, using in-memory refresh token store")
		return refreshrepofake.NewFakeRefreshTokenRepo(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	return redisrepo.New(client), nil
}

func newUserRepo() users.Repo {
	return fakeuserrepo.NewFakeUserRepo()
}

func listenAndServe(httpServer *http.Server, log zerolog.Logger) {
	log.Info().Str("address", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server stopped unexpectedly")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
