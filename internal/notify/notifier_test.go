package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeSender struct {
	name  string
	err   error
	sent  []string
	title string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.sent = append(f.sent, message)
	f.title = title
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{s}, []string{"trade_executed"}, discard())

	if err := n.Notify(context.Background(), "low_balance", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 0 {
		t.Error("filtered event was delivered")
	}

	if err := n.Notify(context.Background(), "trade_executed", "Trade", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0] != "body" || s.title != "Trade" {
		t.Errorf("delivered = %v / %q", s.sent, s.title)
	}
}

func TestNotifyEmptyAllowListAllowsAll(t *testing.T) {
	s := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{s}, nil, discard())

	for _, event := range []string{"trade_executed", "anything_else"} {
		if err := n.Notify(context.Background(), event, "t", "m"); err != nil {
			t.Fatalf("Notify(%s): %v", event, err)
		}
	}
	if len(s.sent) != 2 {
		t.Errorf("delivered = %d, want 2", len(s.sent))
	}
}

func TestNotifyJoinsSenderFailures(t *testing.T) {
	ok := &fakeSender{name: "telegram"}
	bad := &fakeSender{name: "discord", err: errors.New("webhook 500")}
	n := NewNotifier([]Sender{bad, ok}, nil, discard())

	err := n.Notify(context.Background(), "trade_failed", "t", "m")
	if err == nil {
		t.Fatal("expected a joined error")
	}
	if !strings.Contains(err.Error(), "discord") {
		t.Errorf("error does not name the failing channel: %v", err)
	}
	// The healthy channel still received the message.
	if len(ok.sent) != 1 {
		t.Error("failure in one channel blocked another")
	}
}
