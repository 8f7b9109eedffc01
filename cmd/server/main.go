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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/api"
	"github.com/vdavid/vmail-lite/internal/config"
	"github.com/vdavid/vmail-lite/internal/crypto"
	"github.com/vdavid/vmail-lite/internal/db"
	"github.com/vdavid/vmail-lite/internal/delivery"
	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/logging"
	"github.com/vdavid/vmail-lite/internal/mail"
	"github.com/vdavid/vmail-lite/internal/widgets"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler, cleanup, err := NewServer(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server")
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// A send can walk both SMTP attempts and then archive over IMAP.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("environment", cfg.Environment).Msg("vmail-lite server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// NewServer wires every component from cfg. When a database URL is set the
// delivery journal is connected and migrated; the returned cleanup closes
// it.
func NewServer(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (http.Handler, func(), error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	tokens := crypto.NewTokenCodec(encryptor)

	sessions := imap.NewManagerWithLimit(&imap.NetDialer{
		Timeout:            cfg.IMAPTimeout,
		InsecureSkipVerify: cfg.TLSInsecureSkip,
	}, cfg.IMAPMaxSessions)

	cleanup := func() {}
	var journal delivery.Journal
	var deliveries api.DeliveryLog
	if cfg.JournalEnabled() {
		pool, err := db.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			db.CloseConnection(pool)
			return nil, nil, err
		}
		db.RegisterPoolMetrics(reg, pool)
		j := db.NewJournal(pool)
		journal, deliveries = j, j
		cleanup = func() { db.CloseConnection(pool) }
		log.Info().Msg("Delivery journal enabled")
	}

	transport := &delivery.SMTPTransport{
		Timeout:            cfg.SMTPTimeout,
		InsecureSkipVerify: cfg.TLSInsecureSkip,
	}
	engine := delivery.NewEngine(transport, mail.NewSentArchiver(sessions), journal)

	service := mail.NewService(sessions, engine, tokens, mail.Options{
		ListLimit:   cfg.ListLimit,
		DefaultHost: cfg.DefaultIMAPHost,
		DefaultPort: cfg.DefaultIMAPPort,
		DefaultTLS:  cfg.DefaultIMAPSecure,
	})

	server := api.NewServer(log.Logger, service, widgets.NewAggregator(cfg.Widgets), tokens, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Deliveries:     deliveries,
	})

	return server, cleanup, nil
}
