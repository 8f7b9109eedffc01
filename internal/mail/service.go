// Package mail is the operation facade behind the HTTP API. Every call
// opens its own IMAP session from the request's credentials, does one
// thing and closes the session again; nothing about a mailbox is kept
// between calls.
package mail

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/crypto"
	"github.com/vdavid/vmail-lite/internal/delivery"
	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// DefaultListLimit is how many messages a listing returns when Options
// does not say otherwise.
const DefaultListLimit = 500

var errMissingHost = errors.New("no IMAP host given and no default configured")

// Deliverer submits an encoded message and archives it.
type Deliverer interface {
	Deliver(ctx context.Context, creds models.Credentials, raw []byte, recipients []string) delivery.Result
}

// Options are the defaults applied to every account.
type Options struct {
	ListLimit int
	// DefaultHost, DefaultPort and DefaultTLS fill in logins that leave the
	// server out.
	DefaultHost string
	DefaultPort int
	DefaultTLS  bool
}

type Service struct {
	sessions  *imap.Manager
	deliverer Deliverer
	tokens    crypto.TokenCodec
	opts      Options
}

func NewService(sessions *imap.Manager, deliverer Deliverer, tokens crypto.TokenCodec, opts Options) *Service {
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}
	return &Service{
		sessions:  sessions,
		deliverer: deliverer,
		tokens:    tokens,
		opts:      opts,
	}
}

// Login checks the credentials with a connect and logout, then seals them
// into a bearer token. secure overrides the configured default when set.
func (s *Service) Login(ctx context.Context, creds models.Credentials, secure *bool) (string, error) {
	creds = s.withDefaults(creds, secure)
	if creds.Host == "" {
		return "", mailerr.New(mailerr.KindInvalidInput, "login", errMissingHost)
	}

	err := s.sessions.WithSession(ctx, creds, func(*imap.Session) error {
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("email", creds.Address).Str("host", creds.Host).Int("port", creds.Port).
			Msg("Login: IMAP check failed")
		return "", err
	}

	token, err := s.tokens.Encode(creds)
	if err != nil {
		return "", mailerr.New(mailerr.KindInternal, "login", err)
	}

	log.Info().Str("email", creds.Address).Str("host", creds.Host).Msg("Login: token issued")
	return token, nil
}

func (s *Service) withDefaults(creds models.Credentials, secure *bool) models.Credentials {
	if creds.Host == "" {
		creds.Host = s.opts.DefaultHost
	}
	if creds.Port == 0 {
		creds.Port = s.opts.DefaultPort
	}
	creds.UseTLS = s.opts.DefaultTLS
	if secure != nil {
		creds.UseTLS = *secure
	}
	return creds
}

// ListFolders returns every folder with its role. Each role is carried by
// at most one folder.
func (s *Service) ListFolders(ctx context.Context, creds models.Credentials) ([]models.Folder, error) {
	var folders []models.Folder

	err := s.sessions.WithSession(ctx, creds, func(sess *imap.Session) error {
		listing, err := sess.ListFolders()
		if err != nil {
			return err
		}
		folders = imap.AnnotateFolders(listing)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return folders, nil
}
