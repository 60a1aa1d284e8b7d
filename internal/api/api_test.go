package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/scalecode-solutions/babytrackerapi/internal/auth"
	"github.com/scalecode-solutions/babytrackerapi/internal/dose"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emptyStore is a monitor.Store with no babies.
type emptyStore struct{}

func (emptyStore) ActiveBabies(ctx context.Context) ([]monitor.Baby, error) { return nil, nil }

func (emptyStore) LastActivity(ctx context.Context, babyID int64, category models.WarningType) (*time.Time, error) {
	return nil, nil
}

func (emptyStore) FamilySettings(ctx context.Context, familyID int64) (*models.WarningThresholdConfig, error) {
	return nil, nil
}

func (emptyStore) FindRecentNotification(ctx context.Context, babyID int64, category models.WarningType, since time.Time) (*models.NotificationLog, error) {
	return nil, nil
}

func (emptyStore) CreateNotification(ctx context.Context, babyID int64, category models.WarningType, familyID int64) error {
	return nil
}

const operatorID = "fa497802-ba40-4447-bc48-6da2bf726926"

type testServer struct {
	handler *Handler
	router  *mux.Router
	auth    *auth.Authenticator
	monitor *monitor.Monitor
}

// contextStore fails once its context is cancelled.
type contextStore struct{ emptyStore }

func (contextStore) ActiveBabies(ctx context.Context) ([]monitor.Baby, error) {
	return nil, ctx.Err()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStore(t, emptyStore{})
}

func newTestServerWithStore(t *testing.T, store monitor.Store) *testServer {
	t.Helper()
	logger := discardLogger()
	authenticator := auth.New([]byte("test-key"))
	dispatcher := push.NewDispatcher(push.NewMockProvider(logger), nil, logger)
	mon := monitor.New(store, dispatcher, logger, monitor.WithInterval(time.Hour))
	t.Cleanup(func() { mon.Stop() })

	h := New(nil, authenticator, mon, nil, logger, []string{operatorID})
	r := mux.NewRouter()
	h.Routes(r)
	return &testServer{handler: h, router: r, auth: authenticator, monitor: mon}
}

func (s *testServer) do(t *testing.T, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	return s.tokenFor(t, operatorID)
}

func (s *testServer) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.auth.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "GET", "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	expired, _ := s.auth.Sign("u1", -time.Minute)

	tests := []struct {
		name   string
		header string
		url    string
		want   int
	}{
		{"missing", "", "/api/notifications/monitor", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", "/api/notifications/monitor", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "/api/notifications/monitor", http.StatusUnauthorized},
		{"query token outside ws", "", "/api/notifications/monitor?access_token=" + s.token(t), http.StatusUnauthorized},
		{"valid", "Bearer " + s.token(t), "/api/notifications/monitor", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized {
				var body models.ErrorResponse
				decodeBody(t, rec, &body)
				if body.Error.Code != "UNAUTHORIZED" {
					t.Errorf("error code = %q", body.Error.Code)
				}
			}
		})
	}
}

func TestMonitorActions(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	var status MonitorResponse
	rec := s.do(t, "GET", "/api/notifications/monitor?action=status", token)
	decodeBody(t, rec, &status)
	if !status.Success || status.Active == nil || *status.Active {
		t.Fatalf("initial status = %+v, want inactive", status)
	}

	var started MonitorResponse
	decodeBody(t, s.do(t, "POST", "/api/notifications/monitor?action=start", token), &started)
	if started.Active == nil || !*started.Active || started.Interval != time.Hour.Milliseconds() {
		t.Fatalf("start = %+v", started)
	}

	var again MonitorResponse
	decodeBody(t, s.do(t, "POST", "/api/notifications/monitor?action=start", token), &again)
	if again.Message != "Warning monitor already running" || !*again.Active || again.Interval != started.Interval {
		t.Errorf("second start = %+v", again)
	}

	var checked MonitorResponse
	rec = s.do(t, "POST", "/api/notifications/monitor?action=check", token)
	if rec.Code == http.StatusConflict {
		// the start tick may still be running its pass
		time.Sleep(50 * time.Millisecond)
		rec = s.do(t, "POST", "/api/notifications/monitor?action=check", token)
	}
	decodeBody(t, rec, &checked)
	if !checked.Success || checked.Result == nil {
		t.Errorf("check = %+v", checked)
	}

	var stopped MonitorResponse
	decodeBody(t, s.do(t, "POST", "/api/notifications/monitor?action=stop", token), &stopped)
	if stopped.Active == nil || *stopped.Active {
		t.Errorf("stop = %+v", stopped)
	}

	var stoppedAgain MonitorResponse
	decodeBody(t, s.do(t, "POST", "/api/notifications/monitor?action=stop", token), &stoppedAgain)
	if stoppedAgain.Message != "Warning monitor not running" {
		t.Errorf("second stop = %+v", stoppedAgain)
	}

	rec = s.do(t, "POST", "/api/notifications/monitor?action=restart", token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d", rec.Code)
	}
}

func TestMonitorControlRequiresOperator(t *testing.T) {
	s := newTestServer(t)
	s.monitor.Start()
	token := s.tokenFor(t, "c7d0b8f4-5c36-4d8e-9a51-2b1f0e6a9d33")

	for _, action := range []string{"start", "stop"} {
		rec := s.do(t, "POST", "/api/notifications/monitor?action="+action, token)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s by non-operator = %d, want 403", action, rec.Code)
			continue
		}
		var body models.ErrorResponse
		decodeBody(t, rec, &body)
		if body.Error.Code != "FORBIDDEN" {
			t.Errorf("%s error code = %q", action, body.Error.Code)
		}
	}
	if !s.monitor.Status().Active {
		t.Error("non-operator stopped the monitor")
	}

	rec := s.do(t, "GET", "/api/notifications/monitor?action=status", token)
	if rec.Code != http.StatusOK {
		t.Errorf("status by non-operator = %d, want 200", rec.Code)
	}
}

func TestMonitorCheckSurvivesCancelledRequest(t *testing.T) {
	s := newTestServerWithStore(t, contextStore{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("POST", "/api/notifications/monitor?action=check", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+s.token(t))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var checked MonitorResponse
	decodeBody(t, rec, &checked)
	if rec.Code != http.StatusOK || !checked.Success || checked.Result == nil {
		t.Errorf("check with cancelled request = %d %+v", rec.Code, checked)
	}
}

func TestSafetyResponse(t *testing.T) {
	s := newTestServer(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	meds := []dose.Medicine{
		{ID: 1, Name: "Paracetamol", DoseMinTime: "0:04:00", UnitAbbr: "ml"},
		{ID: 2, Name: "Vitamin D"},
	}
	history := []dose.Administration{
		{MedicineID: 1, Time: now.Add(-90 * time.Minute), DoseAmount: 2.5},
		{MedicineID: 2, Time: now.Add(-time.Hour), DoseAmount: 1},
	}

	resp := s.handler.safety(meds, history, now)
	if len(resp.States) != 2 {
		t.Fatalf("got %d states", len(resp.States))
	}
	if resp.States[0].IsSafe || resp.States[0].MinutesRemaining != 150 {
		t.Errorf("paracetamol state = %+v", resp.States[0])
	}
	if !resp.States[1].IsSafe {
		t.Errorf("vitamin D state = %+v", resp.States[1])
	}
	if resp.PollAfterSeconds != 60 {
		t.Errorf("PollAfterSeconds = %d", resp.PollAfterSeconds)
	}

	if got := s.handler.safety(meds[1:], history, now).PollAfterSeconds; got != 0 {
		t.Errorf("PollAfterSeconds with all safe = %d", got)
	}
}

func TestValidateMedicineRequest(t *testing.T) {
	str := func(s string) *string { return &s }
	neg := -1.0

	tests := []struct {
		name string
		req  models.MedicineRequest
		ok   bool
	}{
		{"empty", models.MedicineRequest{}, true},
		{"days format", models.MedicineRequest{DoseMinTime: str("1:06:00")}, true},
		{"legacy format", models.MedicineRequest{DoseMinTime: str("06:00")}, true},
		{"cleared", models.MedicineRequest{DoseMinTime: str("")}, true},
		{"malformed", models.MedicineRequest{DoseMinTime: str("6h")}, false},
		{"negative dose", models.MedicineRequest{TypicalDoseSize: &neg}, false},
		{"nameless contact", models.MedicineRequest{Contacts: []models.MedicineContact{{Phone: "555"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validateMedicineRequest(&tt.req) == ""; got != tt.ok {
				t.Errorf("validateMedicineRequest() ok = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestValidateWarningConfig(t *testing.T) {
	cfg := models.WarningThresholdConfig{}
	if msg := validateWarningConfig(&cfg); msg != "" {
		t.Fatalf("defaults rejected: %s", msg)
	}
	if cfg.FeedWarningTime != models.DefaultFeedWarningTime || cfg.DiaperWarningTime != models.DefaultDiaperWarningTime {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	bad := models.WarningThresholdConfig{FeedWarningTime: "2h"}
	if validateWarningConfig(&bad) == "" {
		t.Error("malformed feed time accepted")
	}

	neg := -5
	negative := models.WarningThresholdConfig{NotificationDiaperAdvanceMinutes: &neg}
	if validateWarningConfig(&negative) == "" {
		t.Error("negative advance minutes accepted")
	}
}

func TestListParams(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		query     string
		ok        bool
		wantSince time.Time
		wantLimit int
	}{
		{"", true, now.Add(-24 * time.Hour), defaultListLimit},
		{"since=2025-05-30T00:00:00Z&limit=10", true, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), 10},
		{"limit=100000", true, now.Add(-24 * time.Hour), maxListLimit},
		{"since=yesterday", false, time.Time{}, 0},
		{"limit=-1", false, time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/babies/1/feeds?"+tt.query, nil)
			since, limit, ok := listParams(rec, req, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				if rec.Code != http.StatusBadRequest {
					t.Errorf("status = %d", rec.Code)
				}
				return
			}
			if !since.Equal(tt.wantSince) || limit != tt.wantLimit {
				t.Errorf("listParams() = %v, %d", since, limit)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	now := time.Now()
	if got, err := parseTime(nil, now); err != nil || !got.Equal(now) {
		t.Errorf("parseTime(nil) = %v, %v", got, err)
	}
	s := "2025-06-01T08:30:00+02:00"
	got, err := parseTime(&s, now)
	if err != nil || !got.Equal(time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)) {
		t.Errorf("parseTime(%q) = %v, %v", s, got, err)
	}
	bad := "June 1st"
	if _, err := parseTime(&bad, now); err == nil {
		t.Error("parseTime accepted a non RFC 3339 value")
	}
}

func TestWebsocketUnavailableWithoutHub(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "GET", "/api/ws?access_token="+s.token(t), "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, body %s", rec.Code, strings.TrimSpace(rec.Body.String()))
	}
}

func TestValidTimezone(t *testing.T) {
	if !validTimezone("Europe/Berlin") || !validTimezone("UTC") {
		t.Error("known timezones rejected")
	}
	if validTimezone("") || validTimezone("Mars/Olympus") {
		t.Error("unknown timezones accepted")
	}
}
