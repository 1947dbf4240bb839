package notification

import (
	"context"
	"strings"
	"testing"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TplRequestRejected, map[string]string{
		"request_number": "CN20260115-0007",
		"reason":         "duplicate request",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Case note request CN20260115-0007 rejected" {
		t.Errorf("subject = %q", subject)
	}
	if body != "Your case note request CN20260115-0007 was rejected. Reason: duplicate request." {
		t.Errorf("body = %q", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRenderLeavesUnmatchedPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TplHandoverReminder, map[string]string{"to_user": "ca-2"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "{{request_id}}") {
		t.Errorf("body lost unmatched placeholder: %q", body)
	}
}

func TestSendFromTemplateRecordsOutbox(t *testing.T) {
	email := &MockEmailSender{}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n, err := m.SendFromTemplate(context.Background(), TplRequestApproved,
		map[string]string{"request_number": "CN20260115-0001"}, "ca1@clinic.example")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if n.Status != StatusSent || n.SentAt == nil {
		t.Errorf("notification not marked sent: %+v", n)
	}
	if calls := email.Calls(); len(calls) != 1 || calls[0].To != "ca1@clinic.example" {
		t.Errorf("email calls = %+v", calls)
	}

	got, err := m.Get(context.Background(), n.ID)
	if err != nil || got.TemplateID != TplRequestApproved {
		t.Errorf("outbox entry = %+v, err = %v", got, err)
	}
}

func TestRetryFailedDelivery(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n, err := m.SendFromTemplate(context.Background(), TplReturnVerified,
		map[string]string{"request_number": "CN20260115-0002"}, "mr@records.example")
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	if n.Status != StatusFailed || n.Error == "" {
		t.Fatalf("failed send not recorded: %+v", n)
	}

	// Retrying a sent notification is refused; a failed one goes through
	// once the sender recovers.
	email.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := m.Get(context.Background(), n.ID)
	if got.Status != StatusSent || got.Error != "" {
		t.Errorf("retried notification = %+v", got)
	}
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("retry of a sent notification should be refused")
	}
}
