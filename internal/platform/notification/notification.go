// Package notification renders patient-facing messages and delivers them
// best-effort. Delivery never blocks or fails the operation that triggered it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Built-in template ids.
const (
	TemplateAdmissionConfirmation = "admission-confirmation"
	TemplateTransferNotice        = "transfer-notice"
	TemplateDischargeNotice       = "discharge-notice"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateAdmissionConfirmation,
			Name:    "Admission Confirmation",
			Subject: "Admission {{admission_number}} confirmed",
			Body:    "Dear {{patient_name}}, you have been admitted on {{admission_date}} under the care of {{doctor_name}}. Ward {{ward_name}}, room {{room_number}}, bed {{bed_number}}.",
		},
		{
			ID:      TemplateTransferNotice,
			Name:    "Transfer Notice",
			Subject: "Bed transfer for admission {{admission_number}}",
			Body:    "Dear {{patient_name}}, you have been moved to ward {{ward_name}}, room {{room_number}}, bed {{bed_number}}. Reason: {{reason}}",
		},
		{
			ID:      TemplateDischargeNotice,
			Name:    "Discharge Notice",
			Subject: "Discharge from admission {{admission_number}}",
			Body:    "Dear {{patient_name}}, you were discharged on {{discharge_date}}. Follow-up: {{follow_up}}",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Mock Sender (test double)
// ---------------------------------------------------------------------------

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

const sendTimeout = 15 * time.Second

// Stats counts dispatch outcomes since start.
type Stats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Dispatcher renders a template and sends it on its own goroutine. Failures
// are logged and counted, never returned to the caller.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	stats Stats
}

func NewDispatcher(sender EmailSender, templates *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Dispatcher{
		sender:    sender,
		templates: templates,
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// Notify queues one email. An empty recipient is skipped.
func (d *Dispatcher) Notify(ctx context.Context, templateID, recipient string, data map[string]string) {
	if recipient == "" {
		d.count(func(s *Stats) { s.Skipped++ })
		d.logger.Debug().Str("template", templateID).Msg("no recipient, notification skipped")
		return
	}

	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		d.logger.Error().Err(err).Str("template", templateID).Msg("failed to render notification")
		return
	}

	// The request that triggered the notification may finish first.
	sendCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, sendTimeout)
		defer cancel()

		if err := d.sender.SendEmail(ctx, recipient, subject, body); err != nil {
			d.count(func(s *Stats) { s.Failed++ })
			d.logger.Error().Err(err).
				Str("template", templateID).
				Str("recipient", recipient).
				Msg("failed to send notification")
			return
		}
		d.count(func(s *Stats) { s.Sent++ })
	}()
}

// Flush waits for in-flight sends; used on shutdown and in tests.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}
