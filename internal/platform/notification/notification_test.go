package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RenderBuiltIn(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateAdmissionConfirmation, map[string]string{
		"admission_number": "ADM-2026-0001",
		"patient_name":     "Jane Doe",
		"doctor_name":      "Dr. Smith",
		"admission_date":   "2026-03-01",
		"ward_name":        "General Medicine",
		"room_number":      "R-101",
		"bed_number":       "B-101-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Admission ADM-2026-0001 confirmed" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "bed B-101-1") || !strings.Contains(body, "Dear Jane Doe") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestTemplateEngine_MissingKeysLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TemplateDischargeNotice, map[string]string{"patient_name": "Jane"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{discharge_date}}") {
		t.Errorf("expected placeholder to remain, got %q", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateEngine_RegisterTemplate(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(Template{ID: "custom", Subject: "Hi {{name}}", Body: "Body {{name}}"})
	subject, body, err := e.Render("custom", map[string]string{"name": "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hi Bob" || body != "Body Bob" {
		t.Errorf("unexpected render %q / %q", subject, body)
	}
}

func TestDispatcher_Sends(t *testing.T) {
	sender := &MockEmailSender{}
	d := NewDispatcher(sender, nil, zerolog.Nop())

	d.Notify(context.Background(), TemplateTransferNotice, "jane@example.com", map[string]string{
		"admission_number": "ADM-2026-0002",
		"reason":           "step-down care",
	})
	d.Flush()

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "jane@example.com" {
		t.Errorf("unexpected recipient %s", calls[0].To)
	}
	if calls[0].Subject != "Bed transfer for admission ADM-2026-0002" {
		t.Errorf("unexpected subject %q", calls[0].Subject)
	}
	if s := d.Stats(); s.Sent != 1 || s.Failed != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestDispatcher_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	sender := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	d := NewDispatcher(sender, nil, zerolog.New(&buf))

	d.Notify(context.Background(), TemplateDischargeNotice, "jane@example.com", nil)
	d.Flush()

	if s := d.Stats(); s.Failed != 1 || s.Sent != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
	if !strings.Contains(buf.String(), "smtp down") {
		t.Errorf("expected failure in log, got %q", buf.String())
	}
}

func TestDispatcher_CancelledRequestStillSends(t *testing.T) {
	sender := &MockEmailSender{}
	d := NewDispatcher(sender, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, TemplateAdmissionConfirmation, "jane@example.com", nil)
	d.Flush()

	if len(sender.Calls()) != 1 {
		t.Errorf("expected send despite cancelled request context")
	}
}

func TestDispatcher_SkipsEmptyRecipient(t *testing.T) {
	sender := &MockEmailSender{}
	d := NewDispatcher(sender, nil, zerolog.Nop())

	d.Notify(context.Background(), TemplateAdmissionConfirmation, "", nil)
	d.Flush()

	if len(sender.Calls()) != 0 {
		t.Error("expected no email for empty recipient")
	}
	if s := d.Stats(); s.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %+v", s)
	}
}

func TestDispatcher_UnknownTemplate(t *testing.T) {
	sender := &MockEmailSender{}
	d := NewDispatcher(sender, nil, zerolog.Nop())

	d.Notify(context.Background(), "missing", "jane@example.com", nil)
	d.Flush()

	if len(sender.Calls()) != 0 {
		t.Error("expected no email for unknown template")
	}
	if s := d.Stats(); s.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", s)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))
	if err := s.SendEmail(context.Background(), "a@b.c", "Subject", "Body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"to":"a@b.c"`) {
		t.Errorf("expected recipient in log, got %q", buf.String())
	}
}

func TestNewSendGridSender(t *testing.T) {
	s := NewSendGridSender("SG.test", "Ward Desk", "ward@example.com", true)
	if s.from.Address != "ward@example.com" || s.from.Name != "Ward Desk" {
		t.Errorf("unexpected from %+v", s.from)
	}
	if !s.sandbox {
		t.Error("expected sandbox mode")
	}
}
