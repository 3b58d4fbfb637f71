package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"skype-alertbot/internal/format"
	"skype-alertbot/internal/metrics"
	"skype-alertbot/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// testMessage is the fixed body sent by the /test endpoint.
const testMessage = "This is a test message from skype-alertbot."

const helpText = `skype-alertbot - Prometheus Alertmanager to Skype bridge

Routes:
  GET  /                 this help text
  GET|POST /test         send a test message to the configured recipients
  GET|POST /test/{to}    send a test message to {to}
  GET|POST /alert        relay an Alertmanager webhook payload to the configured recipients
  GET|POST /alert/{to}   relay an Alertmanager webhook payload to {to}
  GET  /metrics          Prometheus metrics
  GET  /health           200 when the chat session is authenticated
`

// ChatSender is the slice of the chat session the HTTP front end needs.
type ChatSender interface {
	SendTo(ctx context.Context, recipient, text string) error
	Authenticated() bool
}

// Server holds the HTTP front end's collaborators.
type Server struct {
	sender     ChatSender
	metrics    *metrics.Metrics
	recipients []string
	mode       format.Mode
	log        *logrus.Logger
}

// New creates the front end. recipients is the configured default list; a
// path parameter on /alert and /test overrides it per request.
func New(sender ChatSender, m *metrics.Metrics, recipients []string, mode format.Mode, log *logrus.Logger) *Server {
	return &Server{
		sender:     sender,
		metrics:    m,
		recipients: recipients,
		mode:       mode,
		log:        log,
	}
}

// Router builds the chi router with logging and panic recovery on all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r.MethodFunc(method, "/test", s.handleTest)
		r.MethodFunc(method, "/test/{to}", s.handleTest)
		r.MethodFunc(method, "/alert", s.handleAlert)
		r.MethodFunc(method, "/alert/{to}", s.handleAlert)
	}
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/health", s.handleHealth)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, helpText)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.sender.Authenticated() {
		http.Error(w, "error: chat session is not authenticated", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, "ok")
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	s.metrics.TestMessages.Inc()

	if err := s.deliver(r.Context(), s.recipientsFor(r), testMessage); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, "Sent test message")
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	var msg models.WebhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.metrics.LastAlertSuccess.Set(0)
		s.log.WithError(err).Warn("rejecting malformed alert payload")
		http.Error(w, "invalid alert payload: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	// Counts acceptance of a well-formed payload, not delivery success.
	s.metrics.AlertsSent.Inc()

	text := format.Message(&msg, s.mode)
	if err := s.deliver(r.Context(), s.recipientsFor(r), text); err != nil {
		s.metrics.LastAlertSuccess.Set(0)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.metrics.LastAlertSuccess.Set(1)
	fmt.Fprint(w, "Sent message")
}

// recipientsFor resolves the destination list: a path parameter overrides
// the configured default.
func (s *Server) recipientsFor(r *http.Request) []string {
	if to := chi.URLParam(r, "to"); to != "" {
		return []string{to}
	}
	return s.recipients
}

// deliver attempts every recipient even when earlier sends fail and returns
// the first failure, which the handler reports.
func (s *Server) deliver(ctx context.Context, recipients []string, text string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipient configured")
	}

	var first error
	for _, recipient := range recipients {
		if err := s.sender.SendTo(ctx, recipient, text); err != nil {
			s.log.WithField("recipient", recipient).WithError(err).Error("delivery failed")
			if first == nil {
				first = fmt.Errorf("send to %s: %w", recipient, err)
			}
		}
	}
	return first
}
