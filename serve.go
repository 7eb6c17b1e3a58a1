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

	"task-manager/handlers"
	"task-manager/logging"
	"task-manager/services"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := setup("task-manager")
	if err != nil {
		return err
	}
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting task manager...")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logging.Logger.Errorf("Event ID: DB_CONNECTION_FAILED, Description: %v", err)
		return err
	}
	defer st.Close(context.Background())

	userService, err := newUserService(cfg, st)
	if err != nil {
		return err
	}
	taskService := services.NewTaskService(st.Tasks, st.Users)
	dashboardService := services.NewDashboardService(st.Tasks, st.Users)

	router := handlers.NewRouter(
		handlers.RouterConfig{Auth: userService, ClientURL: cfg.ClientURL, RequestTimeout: cfg.RequestTimeout},
		handlers.NewAuthHandler(userService),
		handlers.NewUserHandler(userService, dashboardService),
		handlers.NewTaskHandler(taskService, dashboardService),
		handlers.NewHealthHandler(st.Tasks),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Logger.Errorf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
			return err
		}
	case <-ctx.Done():
		logging.Logger.Info("Event ID: SERVER_SHUTDOWN, Description: Shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logging.Logger.Info("Event ID: SERVER_STOPPED, Description: Server stopped")
	return nil
}
