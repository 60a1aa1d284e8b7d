package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(url string) *WebhookProvider {
	p := NewWebhookProvider(url, "secret", discardLogger())
	p.retryDelay = time.Millisecond
	return p
}

func TestWebhookProviderSend(t *testing.T) {
	var got webhookRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	payload := Payload{Title: "Baby Tracker", Body: "Feed due", Name: "feed_warning_1"}
	if err := newTestProvider(srv.URL).Send(context.Background(), 42, payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.FamilyID != 42 || got.Title != "Baby Tracker" || got.Name != "feed_warning_1" {
		t.Errorf("gateway received %+v", got)
	}
}

func TestWebhookProviderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestProvider(srv.URL).Send(context.Background(), 1, Payload{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("gateway calls = %d, want 3", calls.Load())
	}
}

func TestWebhookProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown family", http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestProvider(srv.URL).Send(context.Background(), 1, Payload{})
	if err == nil {
		t.Fatal("Send() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want HTTP 404", err)
	}
	if calls.Load() != 1 {
		t.Errorf("gateway calls = %d, want 1", calls.Load())
	}
}

type stubProvider struct {
	err error
}

func (s stubProvider) Send(ctx context.Context, familyID int64, payload Payload) error {
	return s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestDispatcherSend(t *testing.T) {
	pub := &recordingPublisher{}

	ok := NewDispatcher(stubProvider{}, pub, discardLogger()).Send(context.Background(), 5, Payload{Name: "n"})
	if !ok.Success || ok.Error != "" {
		t.Errorf("Send() = %+v, want success", ok)
	}

	failed := NewDispatcher(stubProvider{err: errors.New("gateway down")}, pub, discardLogger()).Send(context.Background(), 5, Payload{})
	if failed.Success || failed.Error != "gateway down" {
		t.Errorf("Send() = %+v, want failure", failed)
	}

	if len(pub.events) != 1 || pub.events[0].FamilyID != 5 || pub.events[0].Type != EventNotification {
		t.Errorf("published events = %+v, want one notification for family 5", pub.events)
	}
}

func TestHubDeliversFamilyEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub("*", discardLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 7)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(7) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(Event{Type: EventNotification, FamilyID: 8, At: time.Now()})
	hub.Publish(Event{Type: EventNotification, FamilyID: 7, Payload: &Payload{Title: "hello"}, At: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var e Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if e.FamilyID != 7 || e.Payload == nil || e.Payload.Title != "hello" {
		t.Errorf("received %+v, want family 7 event", e)
	}
}
