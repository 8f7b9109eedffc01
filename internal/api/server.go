// Package api is the HTTP surface of the gateway: JSON endpoints over the
// mail service plus the public widget feed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vdavid/vmail-lite/internal/auth"
	"github.com/vdavid/vmail-lite/internal/crypto"
	"github.com/vdavid/vmail-lite/internal/mail"
	"github.com/vdavid/vmail-lite/internal/widgets"
)

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	// Deliveries, when set, exposes GET /api/deliveries.
	Deliveries DeliveryLog
}

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	service *mail.Service
	widgets *widgets.Aggregator
	tokens  crypto.TokenCodec
	opts    Options
}

func NewServer(logger zerolog.Logger, service *mail.Service, aggregator *widgets.Aggregator, tokens crypto.TokenCodec, opts Options) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		service: service,
		widgets: aggregator,
		tokens:  tokens,
		opts:    opts,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(Metrics)
	s.router.Use(CORS)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("vmail-lite is running"))
	})

	authHandler := NewAuthHandler(s.service)
	foldersHandler := NewFoldersHandler(s.service)
	mailsHandler := NewMailsHandler(s.service)
	composeHandler := NewComposeHandler(s.service, s.opts.MaxUploadBytes)
	widgetsHandler := NewWidgetsHandler(s.widgets)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Get("/widgets/data", widgetsHandler.Get)

		// Links the browser opens directly can carry the token in the query.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuthOrQuery(s.tokens))
			r.Get("/mails/{uid}/download", mailsHandler.Download)
			r.Get("/mails/{uid}/attachments/{filename}", mailsHandler.Attachment)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))

			r.Get("/folders", foldersHandler.GetFolders)

			r.Get("/mails", mailsHandler.List)
			r.Get("/mails/{uid}", mailsHandler.Get)
			r.Delete("/mails/{uid}", mailsHandler.Delete)
			r.Post("/mails/{uid}/move", mailsHandler.Move)
			r.Post("/mails/{uid}/archive", mailsHandler.Archive)
			r.Post("/mails/{uid}/spam", mailsHandler.Spam)
			r.Post("/mails/{uid}/unread", mailsHandler.Unread)
			r.Post("/mails/{uid}/draft", composeHandler.UpdateDraft)
			r.Delete("/trash/empty", mailsHandler.EmptyTrash)

			r.Post("/send", composeHandler.Send)
			r.Post("/drafts", composeHandler.SaveDraft)

			if s.opts.Deliveries != nil {
				r.Get("/deliveries", NewDeliveriesHandler(s.opts.Deliveries).List)
			}
		})
	})
}
