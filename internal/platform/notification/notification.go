// Package notification renders and records the engine's outbound
// notification intents (dose reminders, stock alerts, adherence alerts) and
// hands them to channel senders. The engine decides that and when an intent
// fires; delivery transport belongs to the sender implementations, and a
// sender failure never fails the caller's transaction.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind identifies what triggered a notification intent.
type Kind string

const (
	KindDoseReminder  Kind = "dose-reminder"
	KindMissedDose    Kind = "missed-dose"
	KindLowStock      Kind = "low-stock"
	KindCriticalStock Kind = "critical-stock"
	KindZeroStock     Kind = "zero-stock"
	KindLowAdherence  Kind = "low-adherence"
	KindReorder       Kind = "reorder"
)

// Channel represents the delivery channel of a notification.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Intent is a single rendered notification awaiting (or past) delivery.
type Intent struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Channel   Channel           `json:"channel"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Payload   map[string]string `json:"payload,omitempty"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Sink is the collaborator interface the engine calls when an intent should
// fire. Implementations must not block the caller's core operation; errors
// are for the caller to log, not to propagate.
type Sink interface {
	Notify(ctx context.Context, recipient string, kind Kind, payload map[string]string) error
}

// PushSender delivers push notifications.
type PushSender interface {
	SendPush(ctx context.Context, to, title, body string) error
}

// SMSSender delivers SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Template defines the rendered text for one notification kind.
type Template struct {
	Kind    Kind
	Channel Channel
	Subject string
	Body    string
}

// TemplateEngine holds the per-kind templates and renders them with payload
// data using {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[Kind]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in medication
// templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[Kind]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			Kind:    KindDoseReminder,
			Channel: ChannelPush,
			Subject: "Medication time",
			Body:    "It's time for your medication {{medication}}. Dose: {{dosage}}. Scheduled for {{time}}.",
		},
		{
			Kind:    KindMissedDose,
			Channel: ChannelPush,
			Subject: "Missed medication: {{medication}}",
			Body:    "You missed your {{time}} dose of {{medication}}. Try to keep to your schedule for better outcomes.",
		},
		{
			Kind:    KindLowStock,
			Channel: ChannelPush,
			Subject: "Low stock: {{medication}}",
			Body:    "{{medication}} is running low. {{stock}} {{unit}} left, about {{days}} day(s) remaining. Please order more soon.",
		},
		{
			Kind:    KindCriticalStock,
			Channel: ChannelSMS,
			Subject: "Critical stock: {{medication}}",
			Body:    "{{medication}} will run out in {{days}} day(s). Order a refill now.",
		},
		{
			Kind:    KindZeroStock,
			Channel: ChannelSMS,
			Subject: "Out of stock: {{medication}}",
			Body:    "{{medication}} is out of stock. Order immediately.",
		},
		{
			Kind:    KindLowAdherence,
			Channel: ChannelPush,
			Subject: "Medication adherence is low",
			Body:    "Your adherence rate over the last {{period}} days is {{adherence}}%. Taking doses on schedule improves your treatment.",
		},
		{
			Kind:    KindReorder,
			Channel: ChannelPush,
			Subject: "Reorder suggested: {{medication}}",
			Body:    "Stock of {{medication}} crossed its reorder threshold ({{stock}} {{unit}} left). A new order is recommended.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.Kind] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Kind] = &t
}

// Render looks up the template for a kind and performs {{key}} replacement
// using the payload. Keys present in the template but absent from the payload
// are left as-is.
func (e *TemplateEngine) Render(kind Kind, payload map[string]string) (*Template, string, string, error) {
	e.mu.RLock()
	t, ok := e.templates[kind]
	e.mu.RUnlock()
	if !ok {
		return nil, "", "", fmt.Errorf("no template for notification kind %q", kind)
	}

	subject := t.Subject
	body := t.Body
	for k, v := range payload {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return t, subject, body, nil
}

// ---------------------------------------------------------------------------
// Mock senders (test doubles)
// ---------------------------------------------------------------------------

// PushCall records a single call to SendPush.
type PushCall struct {
	To    string
	Title string
	Body  string
}

// MockPushSender is a test double for PushSender.
type MockPushSender struct {
	mu         sync.Mutex
	calls      []PushCall
	ShouldFail bool
	FailError  string
}

// SendPush records the call and optionally returns an error.
func (m *MockPushSender) SendPush(_ context.Context, to, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PushCall{To: to, Title: title, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded push calls.
func (m *MockPushSender) Calls() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager renders intents from templates, dispatches them through the channel
// senders, and keeps an in-memory delivery log. It implements Sink.
type Manager struct {
	push      PushSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu      sync.RWMutex
	intents map[string]*Intent
}

// NewManager constructs a Manager.
func NewManager(push PushSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{
		push:      push,
		sms:       sms,
		templates: tpl,
		logger:    logger,
		intents:   make(map[string]*Intent),
	}
}

// Notify renders the intent for kind, dispatches it, and records the outcome.
// Dispatch failures are recorded and logged but still returned so sweep
// summaries can count them; callers on the synchronous path ignore the error.
func (m *Manager) Notify(ctx context.Context, recipient string, kind Kind, payload map[string]string) error {
	tpl, subject, body, err := m.templates.Render(kind, payload)
	if err != nil {
		return err
	}

	n := &Intent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Channel:   tpl.Channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Payload:   payload,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}

	var sendErr error
	switch tpl.Channel {
	case ChannelPush:
		sendErr = m.push.SendPush(ctx, recipient, subject, body)
	case ChannelSMS:
		sendErr = m.sms.SendSMS(ctx, recipient, body)
	default:
		sendErr = fmt.Errorf("unsupported notification channel: %s", tpl.Channel)
	}

	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
		m.logger.Warn().
			Str("recipient", recipient).
			Str("kind", string(kind)).
			Err(sendErr).
			Msg("notification dispatch failed")
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.intents[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

// Get retrieves a recorded intent by ID.
func (m *Manager) Get(id string) (*Intent, error) {
	m.mu.RLock()
	n, ok := m.intents[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns recorded intents for a recipient, up to limit.
func (m *Manager) ListByRecipient(recipient string, limit int) []*Intent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Intent
	for _, n := range m.intents {
		if n.Recipient == recipient {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

// Stats returns intent counts grouped by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.intents {
		stats[n.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// Handler exposes the delivery log over HTTP via Echo.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new Handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.GET("/notifications", h.HandleList)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recipient query parameter is required"})
	}
	return c.JSON(http.StatusOK, h.manager.ListByRecipient(recipient, 100))
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
