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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	authStore "github.com/MrJamesThe3rd/pharmacy/internal/auth/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	catalogStore "github.com/MrJamesThe3rd/pharmacy/internal/catalog/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/config"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
	pharmacyHttp "github.com/MrJamesThe3rd/pharmacy/internal/http"
	authHandler "github.com/MrJamesThe3rd/pharmacy/internal/http/auth"
	catalogHandler "github.com/MrJamesThe3rd/pharmacy/internal/http/catalog"
	invoiceHandler "github.com/MrJamesThe3rd/pharmacy/internal/http/invoice"
	orderHandler "github.com/MrJamesThe3rd/pharmacy/internal/http/order"
	reportHandler "github.com/MrJamesThe3rd/pharmacy/internal/http/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/importer"
	"github.com/MrJamesThe3rd/pharmacy/internal/logging"
	"github.com/MrJamesThe3rd/pharmacy/internal/order"
	orderStore "github.com/MrJamesThe3rd/pharmacy/internal/order/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
	saleStore "github.com/MrJamesThe3rd/pharmacy/internal/sale/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	var (
		catalogRepo    = catalogStore.New(db)
		authService    = auth.NewService(authStore.New(db), cfg.Auth.Secret, cfg.Auth.TokenTTL, log)
		catalogService = catalog.NewService(catalogRepo, log, catalog.WithPhoneRegion(cfg.Catalog.PhoneRegion))
		importService  = importer.NewService(catalogService, log)
		orderService   = order.NewService(orderStore.New(db), log, time.Now)
		saleService    = sale.NewService(saleStore.New(db), log, time.Now)
		reportService  = report.NewService(catalogRepo, time.Now, cfg.Reports.NearExpiryMonths)
	)

	if cfg.Auth.AdminEmail != "" {
		if _, err := authService.EnsureUser(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, auth.RoleAdmin); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	router := pharmacyHttp.New(
		pharmacyHttp.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Tokens:         authService,
			Log:            log,
		},
		authHandler.NewHandler(authService, log),
		catalogHandler.NewHandler(catalogService, importService, log),
		orderHandler.NewHandler(orderService, log),
		invoiceHandler.NewHandler(saleService, log),
		reportHandler.NewHandler(reportService, log),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		log.WithField("addr", srv.Addr).Infof("starting %s", cfg.App.Name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
