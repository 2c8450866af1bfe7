package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventRefreshFailed, " "}, discard())

	_ = n.Notify(context.Background(), EventRefreshFailed, "down", "")
	_ = n.Notify(context.Background(), EventRefreshRecovered, "up", "")

	if len(s.titles) != 1 || s.titles[0] != "down" {
		t.Errorf("titles = %v", s.titles)
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())
	_ = n.Notify(context.Background(), "anything", "t", "m")
	if len(s.titles) != 1 {
		t.Errorf("titles = %v", s.titles)
	}
}

func TestNotifierJoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventRefreshFailed, "t", "m")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if len(good.titles) != 1 {
		t.Error("failure stopped delivery to remaining senders")
	}
}

func TestNotifierDisabled(t *testing.T) {
	var n *Notifier
	if n.Enabled() {
		t.Error("nil notifier enabled")
	}
	if err := n.Notify(context.Background(), "e", "t", "m"); err != nil {
		t.Errorf("nil notifier err = %v", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	if err := s.Send(context.Background(), "Refresh failed", "gamma timeout"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "*Refresh failed*\ngamma timeout" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		if strings.Contains(got["content"], "fail") {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	if err := d.Send(context.Background(), "ok", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["content"] != "**ok**\nbody" || got["username"] != "betwixt" {
		t.Errorf("payload = %v", got)
	}
	if err := d.Send(context.Background(), "fail", ""); err == nil {
		t.Error("expected error on 400")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("short = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("long = %q", got)
	}
}
