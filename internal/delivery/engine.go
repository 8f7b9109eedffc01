// Package delivery submits outgoing messages over SMTP and mirrors them
// into the Sent folder.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

var deliveryAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_attempts_total",
		Help: "Total number of SMTP submission attempts",
	},
	[]string{"attempt", "outcome"},
)

var errNoAttempts = errors.New("no submission attempts configured")

// Attempt is one SMTP configuration in the fallback order.
type Attempt struct {
	Name     string
	Port     int
	Security Security
}

// DefaultAttempts tries submission with STARTTLS on 587, then implicit TLS
// on 465.
var DefaultAttempts = []Attempt{
	{Name: "A", Port: 587, Security: StartTLS},
	{Name: "B", Port: 465, Security: ImplicitTLS},
}

// Archiver stores a copy of a delivered message in the sender's Sent
// folder.
type Archiver interface {
	Archive(ctx context.Context, creds models.Credentials, raw []byte) error
}

// Journal records delivery outcomes.
type Journal interface {
	Record(ctx context.Context, rec models.DeliveryRecord) error
}

// Result has two independent parts: whether the message reached the SMTP
// server and whether the Sent copy was stored. A failed archive never
// turns a delivered message into a failure.
type Result struct {
	Delivered   bool
	Attempt     string
	DeliveryErr error
	ArchivalErr error
}

// Engine runs the fallback chain for one message.
type Engine struct {
	transport Transport
	archiver  Archiver
	journal   Journal
	attempts  []Attempt
}

// NewEngine creates an Engine. With no attempts given DefaultAttempts is
// used. archiver and journal may be nil.
func NewEngine(transport Transport, archiver Archiver, journal Journal, attempts ...Attempt) *Engine {
	if len(attempts) == 0 {
		attempts = DefaultAttempts
	}
	return &Engine{
		transport: transport,
		archiver:  archiver,
		journal:   journal,
		attempts:  attempts,
	}
}

// SubmissionHost is the SMTP host for an account: the host from the
// credentials, else mail.<domain>.
func SubmissionHost(creds models.Credentials) string {
	if creds.Host != "" {
		return creds.Host
	}
	return "mail." + creds.Domain()
}

// Deliver submits raw to every envelope recipient, trying each attempt in
// order until one succeeds. On success the exact bytes are archived.
func (e *Engine) Deliver(ctx context.Context, creds models.Credentials, raw []byte, recipients []string) Result {
	var result Result

	sub := Submission{
		Host:     SubmissionHost(creds),
		Username: creds.Address,
		Password: creds.Secret,
		From:     creds.Address,
		To:       recipients,
		Raw:      raw,
	}

	lastErr := errNoAttempts
	for _, attempt := range e.attempts {
		sub.Port = attempt.Port
		sub.Security = attempt.Security

		err := e.transport.Submit(ctx, sub)
		if err == nil {
			deliveryAttemptsTotal.WithLabelValues(attempt.Name, "success").Inc()
			result.Delivered = true
			result.Attempt = attempt.Name
			break
		}

		deliveryAttemptsTotal.WithLabelValues(attempt.Name, "failure").Inc()
		log.Warn().Err(err).Str("attempt", attempt.Name).Str("host", sub.Host).Int("port", sub.Port).
			Stringer("security", attempt.Security).Msg("Delivery: submission attempt failed")
		lastErr = err
	}

	if !result.Delivered {
		result.DeliveryErr = mailerr.New(mailerr.KindDeliverySubmission, "deliver", lastErr)
		e.record(ctx, creds, recipients, result)
		return result
	}

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, creds, raw); err != nil {
			log.Warn().Err(err).Msg("Delivery: message sent but could not be stored in Sent")
			result.ArchivalErr = err
		}
	}

	e.record(ctx, creds, recipients, result)
	return result
}

func (e *Engine) record(ctx context.Context, creds models.Credentials, recipients []string, result Result) {
	if e.journal == nil {
		return
	}

	rec := models.DeliveryRecord{
		ID:         uuid.NewString(),
		Address:    creds.Address,
		Recipients: recipients,
		Attempt:    result.Attempt,
		Delivered:  result.Delivered,
		CreatedAt:  time.Now().UTC(),
	}
	if result.DeliveryErr != nil {
		rec.DeliveryError = errorText(result.DeliveryErr)
	}
	if result.ArchivalErr != nil {
		rec.ArchivalError = errorText(result.ArchivalErr)
	}

	if err := e.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Msg("Delivery: failed to record outcome")
	}
}

// FailureCause describes why a submission was refused in terms a user can
// act on: the server's reply for SMTP errors, otherwise the innermost error
// (for example "connection refused").
func FailureCause(err error) string {
	if err == nil {
		return ""
	}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		text := strconv.Itoa(smtpErr.Code)
		if ec := smtpErr.EnhancedCode; ec[0] > 0 {
			text += fmt.Sprintf(" %d.%d.%d", ec[0], ec[1], ec[2])
		}
		if smtpErr.Message != "" {
			text += " " + smtpErr.Message
		}
		return text
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func errorText(err error) string {
	var classified *mailerr.Error
	if errors.As(err, &classified) && classified.Err != nil {
		return fmt.Sprintf("%s: %v", classified.Kind, classified.Err)
	}
	return err.Error()
}
