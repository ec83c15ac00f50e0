package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"agency-crm/config"
	"agency-crm/internal/handlers"
	"agency-crm/internal/lifecycle"
	"agency-crm/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	autoMigrate     bool
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "прогнать миграции перед стартом")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "время на завершение запросов при остановке")
}

func serve(ctx context.Context) error {
	formula, err := lifecycle.ParseFormula(settings.CommissionFormula)
	if err != nil {
		return err
	}
	handlers.SetCommissionFormula(formula)
	handlers.SetInvoiceCurrency(lifecycle.Currency{Major: settings.CurrencyMajor, Minor: settings.CurrencyMinor})

	if err := config.ConnectDB(settings); err != nil {
		return err
	}
	if autoMigrate {
		if err := config.Migrate(config.DB); err != nil {
			return err
		}
	}
	config.ConnectRedis(settings)
	defer config.CloseRedis()

	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           routes.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP сервер запущен", "addr", settings.HTTPAddr, "commission_formula", formula.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Остановка HTTP сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
