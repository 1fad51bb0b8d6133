// Package notification renders templated messages and hands them to a
// delivery sink. Delivery is best-effort: services fire and forget, and
// failures are logged, never surfaced to the caller of the primary
// operation.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/metrics"
)

// Sender is the delivery sink. Implementations deliver a rendered
// message to a recipient address (SMTP relay, SMS gateway, ...).
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Template is a reusable notification template with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// Engine holds the registered templates.
type Engine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewEngine creates an Engine with the built-in templates registered.
func NewEngine() *Engine {
	e := &Engine{templates: make(map[string]*Template)}
	for _, t := range builtIn {
		tpl := t
		e.templates[t.ID] = &tpl
	}
	return e
}

var builtIn = []Template{
	{
		ID:      "account-approved",
		Subject: "Your account has been approved",
		Body:    "Dear {{name}}, your account has been approved and you can now sign in. {{message}}",
	},
	{
		ID:      "account-rejected",
		Subject: "Your account application was declined",
		Body:    "Dear {{name}}, your account application was declined. Reason: {{reason}}",
	},
	{
		ID:      "hospital-approved",
		Subject: "Hospital registration approved",
		Body:    "Dear {{name}}, the registration of {{hospital}} has been approved. {{message}}",
	},
	{
		ID:      "hospital-rejected",
		Subject: "Hospital registration declined",
		Body:    "Dear {{name}}, the registration of {{hospital}} was declined. Reason: {{reason}}",
	},
	{
		ID:      "referral-created",
		Subject: "New referral {{number}}",
		Body:    "A new referral {{number}} for {{patient}} has been sent to {{hospital}}.",
	},
	{
		ID:      "referral-status-changed",
		Subject: "Referral {{number}} is now {{status}}",
		Body:    "Referral {{number}} has moved to status {{status}}. {{notes}}",
	},
}

// Register adds or replaces a template.
func (e *Engine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template and substitutes {{key}} placeholders from
// data. Keys absent from data render as empty strings.
func (e *Engine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", templateID)
	}

	replace := func(s string) string {
		for k, v := range data {
			s = strings.ReplaceAll(s, "{{"+k+"}}", v)
		}
		// Unfilled placeholders are dropped rather than shown to users.
		for {
			start := strings.Index(s, "{{")
			if start < 0 {
				break
			}
			end := strings.Index(s[start:], "}}")
			if end < 0 {
				break
			}
			s = s[:start] + s[start+end+2:]
		}
		return strings.TrimSpace(s)
	}
	return replace(t.Subject), replace(t.Body), nil
}

// Service dispatches rendered notifications asynchronously with retry.
type Service struct {
	engine   *Engine
	sender   Sender
	logger   zerolog.Logger
	retries  int
	backoff  time.Duration
	inflight sync.WaitGroup
}

func NewService(engine *Engine, sender Sender, logger zerolog.Logger) *Service {
	return &Service{
		engine:  engine,
		sender:  sender,
		logger:  logger,
		retries: 3,
		backoff: 2 * time.Second,
	}
}

// Notify renders and dispatches a notification in the background. It
// never returns an error: delivery failure must not fail the state
// transition that triggered it.
func (s *Service) Notify(recipient, templateID string, data map[string]string) {
	subject, body, err := s.engine.Render(templateID, data)
	if err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Msg("notification render failed")
		metrics.RecordNotification(templateID, "render_error")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliver(recipient, templateID, subject, body)
	}()
}

func (s *Service) deliver(recipient, templateID, subject, body string) {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = s.sender.Send(ctx, recipient, subject, body)
		cancel()
		if lastErr == nil {
			metrics.RecordNotification(templateID, "sent")
			return
		}
		time.Sleep(s.backoff * time.Duration(attempt+1))
	}
	metrics.RecordNotification(templateID, "failed")
	s.logger.Error().
		Err(lastErr).
		Str("template", templateID).
		Str("recipient", recipient).
		Msg("notification delivery failed")
}

// Flush waits for in-flight deliveries; used at shutdown and in tests.
func (s *Service) Flush() {
	s.inflight.Wait()
}

// LogSender writes notifications to the log instead of delivering them.
// Used in development when no relay is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (l LogSender) Send(_ context.Context, to, subject, _ string) error {
	l.Logger.Info().Str("to", to).Str("subject", subject).Msg("notification (log sink)")
	return nil
}
