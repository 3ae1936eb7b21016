package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luiza-sangalli/segment/internal/config"
	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/httpserver"
	"github.com/luiza-sangalli/segment/internal/logging"
	"github.com/luiza-sangalli/segment/internal/pipeline"
	"github.com/luiza-sangalli/segment/internal/store"
)

// main boots the service: .env → config → logger → archive → pipeline → HTTP server.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Warn("could not load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}
	log := logrus.NewEntry(logger)

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	var ready httpserver.Pinger

	// The archive is optional; without DB_URL accepted events live only in the buffer.
	if cfg.DBURL != "" {
		archive, err := store.NewPostgresArchive(cfg.DBURL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer archive.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = archive.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("apply archive schema")
		}

		opts = append(opts, pipeline.WithArchive(archive))
		ready = archive
		log.Info("postgres archive enabled")
	}

	svc := pipeline.New(
		store.NewRing(cfg.RecentCapacity),
		filter.NewSettings(filter.DefaultConfig()),
		opts...,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.NewRouter(cfg, svc, ready, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server exited")
}
