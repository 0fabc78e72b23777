// Package serve implements the HTTP API server command.
package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gradehaus/gradeflow/internal/api"
	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/crm"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/dispatch"
	"github.com/gradehaus/gradeflow/internal/labels"
	"github.com/gradehaus/gradeflow/internal/logging"
	"github.com/gradehaus/gradeflow/internal/notify"
	"github.com/gradehaus/gradeflow/internal/observability"
	"github.com/gradehaus/gradeflow/internal/score"
	"github.com/gradehaus/gradeflow/internal/workflow"
	"github.com/gradehaus/gradeflow/internal/workqueue"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grading HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Web.Port, "port", viper.GetString("web.port"), "HTTP listen port")
	return cmd
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	tables := score.Tables(score.NewStoreTables(store))
	if ttl := settings.Grading.LookupCacheTTL; ttl > 0 {
		tables = score.NewCachedTables(tables, time.Duration(ttl)*time.Minute)
	}
	scorer := score.NewEngine(tables)

	dispatcher := dispatch.New(
		settings.Dispatch.Workers,
		time.Duration(settings.Dispatch.DrainTimeout)*time.Second,
		dispatch.WithMetrics(metrics.Dispatch),
	)
	defer dispatcher.Close()

	engine := workflow.NewEngine(
		store, settings, scorer, dispatcher,
		crm.NewClient(&settings.CRM),
		notify.NewClient(&settings.Notification),
		labels.NewGenerator(settings.Grading.Label),
		workflow.WithMetrics(metrics.Workflow),
		workflow.WithPusher(notify.NewPusher(&settings.Notification.Push)),
	)

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, store, settings, engine, scorer,
		workqueue.New(store, settings), api.WithMetrics(metrics))

	port := settings.Web.Port
	if port == "" {
		port = "8080"
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	if err := controller.Shutdown(10 * time.Second); err != nil {
		return err
	}
	return nil
}
