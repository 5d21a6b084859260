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

	"go.uber.org/zap"

	"laju/internal/app"
	"laju/internal/config"
	"laju/internal/identity"
	"laju/internal/logger"
	"laju/internal/quote"
	"laju/internal/server"
	"laju/internal/shipment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := quote.NewEngine(cfg.QuoteRates())
	if err != nil {
		return fmt.Errorf("rates: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, closeStore, err := app.OpenStore(openCtx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer closeStore()
	sessions, closeSessions, err := app.OpenSessions(openCtx, cfg, time.Now)
	if err != nil {
		return fmt.Errorf("open %s sessions: %w", cfg.SessionBackend, err)
	}
	defer closeSessions()
	pub := app.OpenPublisher(cfg, log)
	defer pub.Close()

	h := server.New(server.Deps{
		Logger:    log,
		Engine:    engine,
		Users:     identity.NewProvider(st, identity.NewArgon2Hasher(identity.DefaultParams)),
		Sessions:  sessions,
		Shipments: st,
		Drafts:    shipment.NewBook(),
		Resi:      shipment.NewResiGenerator(time.Now),
		Events:    pub,
		WebhookSecrets: map[string]string{
			"bank":   cfg.BankWebhookSecret,
			"stripe": cfg.StripeWebhookSecret,
		},
		SessionTTL: cfg.SessionTTL,
		Now:        time.Now,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("sessions", cfg.SessionBackend),
			zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
