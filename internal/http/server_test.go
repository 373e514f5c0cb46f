package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finbot/internal/bot"
	"finbot/internal/log"
	"finbot/internal/services"
	"finbot/internal/storage/memory"
)

type countingHandler struct {
	inner *bot.Dispatcher
	calls atomic.Int32
	// gate, when set, holds every command until it is closed
	gate chan struct{}
}

func (c *countingHandler) Handle(ctx context.Context, msg bot.Message) bot.Reply {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.inner.Handle(ctx, msg)
}

func newTestServer(t *testing.T, opts Options) (*Server, *countingHandler) {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewLedgerService(memory.New(),
		services.WithClock(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }))
	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	handler := &countingHandler{inner: bot.NewDispatcher(svc, logger)}
	opts.Commands = handler
	opts.Charts = svc
	opts.Logger = logger
	srv := NewServer(":0", opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, handler
}

func update(id int64, text string) string {
	return `{"update_id":` + jsonInt(id) + `,"message":{"message_id":1,"from":{"id":42,"first_name":"Ann"},"chat":{"id":4242},"text":` + jsonString(text) + `}}`
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func post(srv *Server, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) webhookReply {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var r webhookReply
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestWebhook_RunsCommands(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	r := decodeReply(t, post(srv, update(1, "/addexpense food lunch 12.5 2024-03-14"), nil))
	if r.Method != "sendMessage" || r.ChatID != 4242 {
		t.Errorf("unexpected envelope %+v", r)
	}
	if r.Text != "Expense: 2024-03-14 food lunch: -12.50 was successfully added." {
		t.Errorf("text = %q", r.Text)
	}

	r = decodeReply(t, post(srv, update(2, "/allstatistics"), nil))
	if r.Chart == nil || len(r.Chart.Values) != 1 || r.Chart.Values[0] != -12.5 {
		t.Errorf("chart = %+v", r.Chart)
	}
}

func TestWebhook_DeduplicatesUpdates(t *testing.T) {
	srv, handler := newTestServer(t, Options{})

	first := decodeReply(t, post(srv, update(7, "/addincome other gift 5"), nil))
	again := decodeReply(t, post(srv, update(7, "/addincome other gift 5"), nil))

	if handler.calls.Load() != 1 {
		t.Fatalf("command ran %d times for one update", handler.calls.Load())
	}
	if first != again {
		t.Errorf("redelivery answered %+v, want %+v", again, first)
	}
}

func TestWebhook_ConcurrentRedeliveryRunsOnce(t *testing.T) {
	srv, handler := newTestServer(t, Options{})
	handler.gate = make(chan struct{})

	const deliveries = 4
	replies := make([]*httptest.ResponseRecorder, deliveries)
	var wg sync.WaitGroup
	for i := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replies[i] = post(srv, update(9, "/addexpense food bus 2"), nil)
		}()
	}

	// let the deliveries reach the dedup check before the first command ends
	deadline := time.Now().Add(2 * time.Second)
	for handler.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(handler.gate)
	wg.Wait()

	if n := handler.calls.Load(); n != 1 {
		t.Fatalf("command ran %d times for one update", n)
	}
	want := decodeReply(t, replies[0])
	for _, rec := range replies[1:] {
		if got := decodeReply(t, rec); got != want {
			t.Errorf("reply %+v, want %+v", got, want)
		}
	}
	if got := decodeReply(t, post(srv, update(10, "/moneylist"), nil)); strings.Count(got.Text, "bus") != 1 {
		t.Errorf("ledger after redeliveries: %q", got.Text)
	}
}

func TestWebhook_SecretAndValidation(t *testing.T) {
	srv, handler := newTestServer(t, Options{WebhookSecret: "s3cret"})

	tests := []struct {
		name   string
		body   string
		header map[string]string
		want   int
	}{
		{"missing secret", update(1, "/help"), nil, http.StatusUnauthorized},
		{"wrong secret", update(1, "/help"), map[string]string{secretHeader: "nope"}, http.StatusUnauthorized},
		{"malformed json", "{", map[string]string{secretHeader: "s3cret"}, http.StatusBadRequest},
		{"no message", `{"update_id":3}`, map[string]string{secretHeader: "s3cret"}, http.StatusNoContent},
		{"ok", update(4, "/help"), map[string]string{secretHeader: "s3cret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(srv, tt.body, tt.header); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if handler.calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", handler.calls.Load())
	}
}

func TestChartEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/api/users/42/chart"); rec.Code != http.StatusNotFound {
		t.Errorf("empty ledger status = %d, want 404", rec.Code)
	}
	if rec := get("/api/users/abc/chart"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	post(srv, update(1, "/addincome other salary 100 2024-03-01"), nil)
	post(srv, update(2, "/addexpense food bread 2 2024-03-02"), nil)

	rec := get("/api/users/42/chart")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got chartResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != 42 || len(got.Values) != 2 || got.Tags[0] != "positive" || got.Tags[1] != "negative" {
		t.Errorf("chart = %+v", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ready := errors.New("store closed")
	srv, _ := newTestServer(t, Options{Ready: func(context.Context) error { return ready }})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz with failing probe = %d", rec.Code)
	}
	ready = nil
	if rec := get("/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d", rec.Code)
	}

	rec := get("/metrics")
	if !strings.Contains(rec.Body.String(), "finbot_http_requests_total 4") {
		t.Errorf("metrics body:\n%s", rec.Body.String())
	}

	if rec := get("/webhook"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /webhook = %d, want 405", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})
	codes := make([]int, 0, 3)
	for i := range 3 {
		codes = append(codes, post(srv, update(int64(100+i), "/help"), nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v", codes)
	}
}
