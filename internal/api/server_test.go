package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/actuator"
	"github.com/nerrad567/gray-logic-access/internal/authz"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/journal"
	"github.com/nerrad567/gray-logic-access/internal/network"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

const testToken = pseudonym.Token("b3a384ba5aa4ba6607ac7301dc31c84da392f215c38fc7081004ecd46d853a4e")

type fixedStatus struct{ snap access.Snapshot }

func (f fixedStatus) Snapshot() access.Snapshot { return f.snap }

type fixedLink struct{ st network.Status }

func (f fixedLink) Status() network.Status { return f.st }

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type fakeJournal struct {
	mu   sync.Mutex
	last journal.Filter
	err  error
	res  *journal.ListResult
}

func (j *fakeJournal) List(_ context.Context, f journal.Filter) (*journal.ListResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.last = f
	if j.err != nil {
		return nil, j.err
	}
	return j.res, nil
}

func permittedOutcome() access.Outcome {
	return access.Outcome{
		DoorID:     "front-door",
		At:         time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Presented:  true,
		Token:      testToken,
		Decision:   authz.Permitted,
		Reason:     authz.ReasonPermitted,
		StatusCode: http.StatusOK,
		Latency:    42 * time.Millisecond,
		Unlocked:   true,
	}
}

func testSnapshot() access.Snapshot {
	last := permittedOutcome()
	return access.Snapshot{
		DoorID: "front-door",
		State:  access.Idle,
		Strike: actuator.Locked,
		Stats: access.Stats{
			Polls:         120,
			Presentations: 3,
			Permitted:     1,
			Denied:        1,
			Indeterminate: 1,
			Last:          &last,
		},
		Uptime:   2 * time.Minute,
		Interval: time.Second,
	}
}

// testServer creates a Server with stub collaborators. mutate may adjust
// the deps before construction.
func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   logging.Discard(),
		Version:  "test",
		Exposure: pseudonym.ExposureRedacted,
		Status:   fixedStatus{snap: testSnapshot()},
		Link:     fixedLink{st: network.Status{Interface: "eth0", Connected: true, Up: true, Running: true}},
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Status: fixedStatus{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without status source should fail")
	}
}

func TestHealth_AllChecksPass(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Checks = map[string]HealthChecker{
			"database": checkFunc(func(context.Context) error { return nil }),
		}
	})

	rec := doRequest(t, srv, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks["database"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHealth_FailingCheckIsDegraded(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Checks = map[string]HealthChecker{
			"mqtt": checkFunc(func(context.Context) error { return errors.New("not connected") }),
		}
	})

	rec := doRequest(t, srv, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["mqtt"] != "not connected" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	srv := testServer(t, nil)

	rec := doRequest(t, srv, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.DoorID != "front-door" || resp.State != "idle" || resp.Strike != "locked" {
		t.Errorf("identity fields = %+v", resp)
	}
	if resp.Counts.Polls != 120 || resp.Counts.Presentations != 3 {
		t.Errorf("counts = %+v", resp.Counts)
	}
	if resp.PollInterval != "1s" {
		t.Errorf("poll_interval = %q, want 1s", resp.PollInterval)
	}
	if resp.Link == nil || !resp.Link.Connected {
		t.Errorf("link = %+v", resp.Link)
	}
	if resp.Last == nil {
		t.Fatal("last outcome missing")
	}
	if resp.Last.Decision != "permitted" || !resp.Last.Unlocked {
		t.Errorf("last = %+v", resp.Last)
	}
	if resp.Last.Token == string(testToken) {
		t.Error("full token exposed under redacted exposure")
	}
}

func TestStatus_NoTokenWhenExposureNone(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Exposure = pseudonym.ExposureNone })

	rec := doRequest(t, srv, "/api/v1/status")
	if strings.Contains(rec.Body.String(), string(testToken)[:8]) {
		t.Errorf("body leaks token prefix: %s", rec.Body.String())
	}
}

func TestJournal_Disabled(t *testing.T) {
	srv := testServer(t, nil)

	rec := doRequest(t, srv, "/api/v1/journal")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestJournal_PassesFilter(t *testing.T) {
	j := &fakeJournal{res: &journal.ListResult{
		Entries: []journal.Entry{{ID: "a", DoorID: "front-door", Decision: "denied", Reason: "not_found"}},
		Total:   1,
		Limit:   10,
	}}
	srv := testServer(t, func(d *Deps) { d.Journal = j })

	rec := doRequest(t, srv, "/api/v1/journal?limit=10&offset=5&decision=denied&since=2026-10-01T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	want := journal.Filter{
		Decision: "denied",
		Since:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Limit:    10,
		Offset:   5,
	}
	if !j.last.Since.Equal(want.Since) || j.last.Decision != want.Decision ||
		j.last.Limit != want.Limit || j.last.Offset != want.Offset {
		t.Errorf("filter = %+v, want %+v", j.last, want)
	}

	var res journal.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 || res.Entries[0].Reason != "not_found" {
		t.Errorf("result = %+v", res)
	}
}

func TestJournal_BadQuery(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Journal = &fakeJournal{res: &journal.ListResult{}} })

	tests := []string{
		"/api/v1/journal?limit=abc",
		"/api/v1/journal?limit=-1",
		"/api/v1/journal?offset=x",
		"/api/v1/journal?decision=maybe",
		"/api/v1/journal?since=yesterday",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := doRequest(t, srv, target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestJournal_RepositoryError(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Journal = &fakeJournal{err: errors.New("disk I/O error")} })

	rec := doRequest(t, srv, "/api/v1/journal")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "disk") {
		t.Error("internal error text leaked to client")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t, nil)

	rec := doRequest(t, srv, "/api/v1/devices")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "graylogic_access_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := testServer(t, func(d *Deps) { d.Gatherer = reg })
	rec := doRequest(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "graylogic_access_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}

	// Without a gatherer the route is absent.
	srv = testServer(t, nil)
	if rec := doRequest(t, srv, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("status without gatherer = %d, want 404", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, nil)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_StreamsOutcomes(t *testing.T) {
	srv := testServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialWS(t, ts)
	waitForClients(t, srv.Hub(), 1)

	if err := srv.Hub().Observe(context.Background(), permittedOutcome()); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			DoorID   string `json:"door_id"`
			Token    string `json:"token"`
			Decision string `json:"decision"`
			Unlocked bool   `json:"unlocked"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != WSTypeOutcome {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeOutcome)
	}
	if msg.Payload.Decision != "permitted" || !msg.Payload.Unlocked || msg.Payload.DoorID != "front-door" {
		t.Errorf("payload = %+v", msg.Payload)
	}
	if msg.Payload.Token != testToken.Redacted() {
		t.Errorf("token = %q, want redacted form", msg.Payload.Token)
	}
}

func TestWebSocket_ClientMessagesIgnored(t *testing.T) {
	srv := testServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialWS(t, ts)
	waitForClients(t, srv.Hub(), 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// The connection stays registered and still receives broadcasts.
	srv.Hub().Broadcast(WSTypeOutcome, map[string]string{"decision": "denied"})

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read after client message: %v", err)
	}
	if srv.Hub().ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", srv.Hub().ClientCount())
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	srv := testServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.hub.Run(ctx)
		close(done)
	}()

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialWS(t, ts)
	waitForClients(t, srv.Hub(), 1)

	cancel()
	<-done

	if srv.Hub().ClientCount() != 0 {
		t.Errorf("client count after Run = %d, want 0", srv.Hub().ClientCount())
	}
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after hub shutdown")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first := testServer(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Close()

	_, portStr, _ := strings.Cut(first.Addr(), ":")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	second := testServer(t, func(d *Deps) { d.Config.Port = port })
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("Start on a bound port should fail")
	}
}

