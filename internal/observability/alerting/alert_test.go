package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/mail"
)

type brokenNotifier struct{}

func (brokenNotifier) Channel() Channel { return "broken" }

func (brokenNotifier) Notify(context.Context, Event) error { return errors.New("offline") }

func TestEmailNotifierFormatsEvent(t *testing.T) {
	sender := mail.NewLogSender()
	notifier := &EmailNotifier{Sender: sender, To: []string{"ops@afriart.test"}, SubjectPrefix: "[AfriArt] "}

	event := Event{
		Code:        "SETTLEMENT_RETRIES_EXHAUSTED",
		Message:     "database unavailable",
		Severity:    xerrors.SeverityCritical,
		Source:      "settlement",
		Reference:   "ws_CO_1",
		Attempts:    5,
		MaxAttempts: 5,
		Metadata:    map[string]string{"stage": "terminal", "kind": "payment"},
		OccurredAt:  time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg, ok := sender.Last()
	if !ok {
		t.Fatalf("expected a message")
	}
	if msg.Subject != "[AfriArt] [critical] SETTLEMENT_RETRIES_EXHAUSTED" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"ws_CO_1", "重试: 5/5", "- kind: payment\n- stage: terminal"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestEmailNotifierSkipsWithoutRecipients(t *testing.T) {
	sender := mail.NewLogSender()
	notifier := &EmailNotifier{Sender: sender}
	if err := notifier.Notify(context.Background(), Event{Code: "X"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.Sent()) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	sender := mail.NewLogSender()
	fanout := NewFanout(
		&EmailNotifier{Sender: sender, To: []string{"ops@afriart.test"}},
		brokenNotifier{},
		LogNotifier{},
		nil,
	)
	err := fanout.Notify(context.Background(), Event{Code: "PAYMENT_FAILURE", Message: "gateway down"})
	if err == nil || !strings.Contains(err.Error(), "channel broken: offline") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(sender.Sent()) != 1 {
		t.Fatalf("email notifier should still run, sent %d", len(sender.Sent()))
	}
}
