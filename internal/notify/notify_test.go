package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"quantbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatSignal(t *testing.T) {
	sig := &domain.Signal{
		Symbol: "BTC/USD", Side: domain.SideBuy, Kind: domain.SignalEnter,
		Confidence: 0.85, Price: 45123.5, Strategy: "sma-cross",
	}
	msg := FormatSignal(sig)

	for _, want := range []string{"sma-cross", "BTC/USD", "BUY", "enter", "45123.50", "85%"} {
		if !strings.Contains(msg, want) {
			t.Errorf("FormatSignal missing %q in:\n%s", want, msg)
		}
	}
}

func TestFormatResult(t *testing.T) {
	result := &domain.BacktestResult{
		Strategy: "rsi-reversion", Symbol: "AAPL",
		TotalReturn: 0.0512, TotalTrades: 12, WinRate: 0.75,
		MaxDrawdown: 0.083, SharpeRatio: 1.42, FinalCapital: 10512,
	}
	msg := FormatResult(result)

	for _, want := range []string{"rsi-reversion", "AAPL", "5.12%", "12", "75%", "8.30%", "1.42"} {
		if !strings.Contains(msg, want) {
			t.Errorf("FormatResult missing %q in:\n%s", want, msg)
		}
	}
}

func TestTelegramNotifierDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier("", "", "", testLogger())
	if n.Enabled() {
		t.Error("Enabled() = true without credentials, want false")
	}
	if err := n.Send(context.Background(), "hello"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Send error = %v, want ErrDisabled", err)
	}
}

func TestTelegramNotifierSend(t *testing.T) {
	var gotPath, gotChatID, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotChatID = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token123", "chat456", srv.URL, testLogger())
	if err := n.Send(context.Background(), "position opened"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotPath != "/bottoken123/sendMessage" {
		t.Errorf("path = %q, want /bottoken123/sendMessage", gotPath)
	}
	if gotChatID != "chat456" {
		t.Errorf("chat_id = %q, want chat456", gotChatID)
	}
	if gotText != "position opened" {
		t.Errorf("text = %q, want %q", gotText, "position opened")
	}
}

func TestTelegramNotifierSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, testLogger())
	if err := n.Send(context.Background(), "x"); err == nil {
		t.Error("Send returned nil, want error on API failure")
	}
}

func TestEmailNotifierDisabledWithoutCredentials(t *testing.T) {
	n := NewEmailNotifier("", 0, "", "", "", nil, testLogger())
	if n.Enabled() {
		t.Error("Enabled() = true without credentials, want false")
	}
}

func TestEmailNotifierSend(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com", 587, "bot", "secret", "bot@example.com", []string{"ops@example.com"}, testLogger())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := n.Send(context.Background(), "backtest finished"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want smtp.example.com:587", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("from/to = %q/%v, want bot@example.com/[ops@example.com]", gotFrom, gotTo)
	}
	body := string(gotMsg)
	if !strings.Contains(body, "Subject: quantbot notification\r\n") {
		t.Errorf("message missing subject header:\n%s", body)
	}
	if !strings.Contains(body, "backtest finished") {
		t.Errorf("message missing body:\n%s", body)
	}
}

// recordingNotifier captures sent messages.
type recordingNotifier struct {
	name     string
	enabled  bool
	err      error
	messages []string
}

func (r *recordingNotifier) Name() string  { return r.name }
func (r *recordingNotifier) Enabled() bool { return r.enabled }

func (r *recordingNotifier) Send(_ context.Context, message string) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func TestDispatcherFanOut(t *testing.T) {
	a := &recordingNotifier{name: "a", enabled: true}
	b := &recordingNotifier{name: "b", enabled: true}
	off := &recordingNotifier{name: "off", enabled: false}

	d := NewDispatcher(600, testLogger(), a, b, off)
	d.NotifySignal(context.Background(), &domain.Signal{
		Symbol: "AAPL", Side: domain.SideBuy, Kind: domain.SignalEnter, Strategy: "sma-cross",
	})

	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Errorf("messages a/b = %d/%d, want 1/1", len(a.messages), len(b.messages))
	}
	if len(off.messages) != 0 {
		t.Errorf("disabled notifier received %d messages, want 0", len(off.messages))
	}
}

func TestDispatcherFailureDoesNotPropagate(t *testing.T) {
	failing := &recordingNotifier{name: "down", enabled: true, err: errors.New("network down")}
	healthy := &recordingNotifier{name: "up", enabled: true}

	d := NewDispatcher(600, testLogger(), failing, healthy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.NotifyTrade(context.Background(), &domain.Trade{ID: "trade_1", Symbol: "AAPL", Side: domain.SideBuy})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("NotifyTrade did not return")
	}

	if len(healthy.messages) != 1 {
		t.Errorf("healthy notifier got %d messages, want 1 despite sibling failure", len(healthy.messages))
	}
}
