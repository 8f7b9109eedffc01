// Command test-server runs the API against in-process IMAP and SMTP servers
// seeded with fixture mail, for end-to-end tests and frontend work without
// a real mail provider. With -journal it also starts Postgres in a
// container and records deliveries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goimap "github.com/emersion/go-imap"
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
	"github.com/vdavid/vmail-lite/internal/models"
	"github.com/vdavid/vmail-lite/internal/testutil"
	"github.com/vdavid/vmail-lite/internal/widgets"
)

func main() {
	withJournal := flag.Bool("journal", false, "start Postgres in a container and record deliveries")
	flag.Parse()

	cfg := getConfig()
	logging.Setup(cfg)

	ctx := context.Background()

	imapServer, smtpServer, err := startMailServers()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start mail servers")
	}
	defer imapServer.Close()
	defer smtpServer.Close()

	if err := seedTestData(imapServer); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed test data")
	}

	var journal *db.Journal
	if *withJournal {
		container, connStr, err := testutil.StartPostgres(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start Postgres")
		}
		defer func() {
			if err := container.Terminate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to terminate Postgres container")
			}
		}()

		pool, err := db.NewConnection(ctx, connStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer db.CloseConnection(pool)

		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		db.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool)
		journal = db.NewJournal(pool)
		log.Info().Str("url", connStr).Msg("Delivery journal enabled")
	}

	creds := imapServer.Credentials()
	handler, token, err := newServer(cfg, creds, smtpServer.Port(), journal)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).
			Str("imap", imapServer.Address).
			Str("smtp", smtpServer.Address).
			Str("email", creds.Address).
			Str("password", creds.Secret).
			Msg("Test server ready, press Ctrl+C to stop")
		log.Info().Str("token", token).Msg("Pre-issued session token")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func getConfig() *config.Config {
	return &config.Config{
		Environment:         "test",
		Port:                envOr("VMAIL_PORT", "3005"),
		EncryptionKeyBase64: testutil.TestKeyBase64,
		LogLevel:            envOr("VMAIL_LOG_LEVEL", "debug"),
		LogFormat:           "console",
		IMAPTimeout:         5 * time.Second,
		SMTPTimeout:         5 * time.Second,
		IMAPMaxSessions:     imap.DefaultSessionsPerAccount,
		ListLimit:           mail.DefaultListLimit,
		MaxUploadBytes:      api.DefaultMaxUploadBytes,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func startMailServers() (*testutil.TestIMAPServer, *testutil.TestSMTPServer, error) {
	imapServer, err := testutil.StartIMAPServer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start test IMAP server: %w", err)
	}

	smtpServer, err := testutil.StartSMTPServer(imapServer.Credentials().Secret)
	if err != nil {
		imapServer.Close()
		return nil, nil, fmt.Errorf("failed to start test SMTP server: %w", err)
	}

	return imapServer, smtpServer, nil
}

// newServer wires the API so that a login with only email and password
// lands on the local IMAP server, and sends go to the local SMTP server
// over one plain-text attempt. It also returns a token for the seeded
// account.
func newServer(cfg *config.Config, creds models.Credentials, smtpPort int, journal *db.Journal) (http.Handler, string, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return nil, "", err
	}
	tokens := crypto.NewTokenCodec(encryptor)

	sessions := imap.NewManagerWithLimit(&imap.NetDialer{Timeout: cfg.IMAPTimeout}, cfg.IMAPMaxSessions)
	// A nil *db.Journal must not become a non-nil interface.
	var (
		recorder delivery.Journal
		reader   api.DeliveryLog
	)
	if journal != nil {
		recorder, reader = journal, journal
	}

	engine := delivery.NewEngine(
		&delivery.SMTPTransport{Timeout: cfg.SMTPTimeout},
		mail.NewSentArchiver(sessions),
		recorder,
		delivery.Attempt{Name: "local", Port: smtpPort, Security: delivery.Plain},
	)

	service := mail.NewService(sessions, engine, tokens, mail.Options{
		ListLimit:   cfg.ListLimit,
		DefaultHost: creds.Host,
		DefaultPort: creds.Port,
		DefaultTLS:  false,
	})

	token, err := tokens.Encode(creds)
	if err != nil {
		return nil, "", err
	}

	// Widgets point at nothing so the dashboard renders its empty state.
	aggregator := widgets.NewAggregator(config.Widgets{
		RatesURL:   "http://" + net.JoinHostPort("127.0.0.1", "1"),
		WeatherURL: "http://" + net.JoinHostPort("127.0.0.1", "1"),
		NewsURL:    "http://" + net.JoinHostPort("127.0.0.1", "1"),
		City:       "Istanbul",
		Timeout:    time.Second,
	})

	server := api.NewServer(log.Logger, service, aggregator, tokens, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Deliveries:     reader,
	})
	return server, token, nil
}

// seedTestData creates the special-use folders and a handful of messages.
func seedTestData(imapServer *testutil.TestIMAPServer) error {
	folders := []struct {
		name string
		attr string
	}{
		{"Sent", goimap.SentAttr},
		{"Drafts", goimap.DraftsAttr},
		{"Trash", goimap.TrashAttr},
		{"Spam", goimap.JunkAttr},
		{"Archive", goimap.ArchiveAttr},
	}
	for _, f := range folders {
		if err := imapServer.AddFolder(f.name, f.attr); err != nil {
			return err
		}
	}

	to := imapServer.Credentials().Address
	messages := []struct {
		raw   string
		flags []string
	}{
		{raw: testutil.SimpleMessage("gonderen@example.com", to, "V-Mail'e hoş geldiniz", "Bu bir deneme mesajıdır.")},
		{raw: testutil.SimpleMessage("mesai@example.com", to, "Yarınki toplantı", "Yarın saat 14:00'teki toplantıyı unutmayın."), flags: []string{goimap.FlaggedFlag}},
		{raw: reportWithAttachment(to), flags: []string{goimap.SeenFlag}},
	}
	for i, m := range messages {
		if _, err := imapServer.Append("INBOX", m.raw, m.flags...); err != nil {
			return fmt.Errorf("failed to add message %d: %w", i+1, err)
		}
	}

	if _, err := imapServer.Append("Drafts", testutil.SimpleMessage(to, "ekip@example.com", "Yarım kalan taslak", "Merhaba,"), goimap.DraftFlag); err != nil {
		return fmt.Errorf("failed to add draft: %w", err)
	}

	return nil
}

func reportWithAttachment(to string) string {
	return "From: raporlar@example.com\r\n" +
		"To: " + to + "\r\n" +
		"Subject: Üçüncü çeyrek raporu\r\n" +
		"Date: Mon, 02 Sep 2024 09:00:00 +0300\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=sep\r\n" +
		"\r\n" +
		"--sep\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"İstediğiniz rapor ektedir.\r\n" +
		"--sep\r\n" +
		"Content-Type: text/csv\r\n" +
		"Content-Disposition: attachment; filename=rapor.csv\r\n" +
		"\r\n" +
		"ay,tutar\r\ntemmuz,120\r\n" +
		"--sep--\r\n"
}
