package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/hotel-frontdesk/internal/application"
	httptransport "github.com/example/hotel-frontdesk/internal/http"
	"github.com/example/hotel-frontdesk/internal/metrics"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root.configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	a, err := loadApp(configPath, os.Stdout)
	if err != nil {
		return err
	}
	logger := a.logger
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close resources", "error", cerr)
		}
	}()

	if err := a.openStore(ctx, true); err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	sessions, err := a.openSessionStore(ctx)
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		return err
	}

	recorder := metrics.New()
	now := time.Now

	occupancyService := a.occupancyService(recorder)
	committer := application.NewBookingCommitter(a.store, newID, now, recorder, logger)
	sessionService := application.NewSessionService(sessions, occupancyService, committer, application.SessionConfig{
		TTL:           a.cfg.SessionTTL,
		MaxSelections: a.cfg.MaxSessionSelections,
	}, newID, now, recorder, logger)
	roomService := application.NewRoomServiceWithLogger(a.store.Repositories().Rooms, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:              httptransport.NewRoomHandler(roomService, logger),
		Occupancy:          httptransport.NewOccupancyHandler(occupancyService, logger),
		Sessions:           httptransport.NewSessionHandler(sessionService, logger),
		Metrics:            recorder.Handler(),
		Observer:           recorder,
		Health:             a.health,
		Logger:             logger,
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("frontdesk API listening",
		"addr", server.Addr,
		"store", a.cfg.Store,
		"session_store", a.cfg.SessionStore,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}
