package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/testutil/testlog"
)

func newTestRouter(t *testing.T) (*Service, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	return svc, svc.adminRouter()
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndReadyRoutes(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "ok" {
		t.Fatalf("health status = %v, want ok", got)
	}

	w = doRequest(t, r, http.MethodGet, "/ready", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ready status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if got := body["ready"]; got != true {
		t.Fatalf("ready = %v, want true", got)
	}
	if got := body["session"]; got != false {
		t.Fatalf("session = %v, want false with no center attached", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("metrics body is empty")
	}
}

func TestStatusRoute(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if got := body["mode"]; got != "central" {
		t.Fatalf("mode = %v, want central", got)
	}
	if got := body["representation"]; got != "color" {
		t.Fatalf("representation = %v, want color", got)
	}
	plan, ok := body["plan"].(map[string]any)
	if !ok {
		t.Fatalf("plan field missing: %v", body)
	}
	if got := plan["external"]; got != float64(1) {
		t.Fatalf("plan external = %v, want 1", got)
	}
	if got := plan["internal"]; got != float64(129) {
		t.Fatalf("plan internal = %v, want 129", got)
	}
}

func TestGroupsRoute(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/groups", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /groups status = %d, want 200", w.Code)
	}
	groups, ok := decodeBody(t, w)["groups"].([]any)
	if !ok || len(groups) != 2 {
		t.Fatalf("groups = %v, want 2 entries", groups)
	}
	first, ok := groups[0].(map[string]any)
	if !ok {
		t.Fatalf("group entry shape: %v", groups[0])
	}
	if got := first["color"]; got != "green" {
		t.Fatalf("first group color = %v, want green", got)
	}
	if got := first["displayed"]; got != "green" {
		t.Fatalf("first group displayed = %v, want green", got)
	}
}

func TestPlansRoute(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/plans", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /plans status = %d, want 200", w.Code)
	}
	plans, ok := decodeBody(t, w)["plans"].([]any)
	if !ok || len(plans) != 1 {
		t.Fatalf("plans = %v, want 1 entry", plans)
	}
	entry := plans[0].(map[string]any)
	if got := entry["internal"]; got != float64(129) {
		t.Fatalf("plan internal = %v, want 129", got)
	}
	if got := entry["active"]; got != true {
		t.Fatalf("plan active = %v, want true", got)
	}
}

func TestEventsRouteWithoutJournal(t *testing.T) {
	testlog.Start(t)
	_, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/events", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /events status = %d, want 503", w.Code)
	}
}

func TestEventsRouteReadsJournal(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	cfg := DefaultServiceConfig()
	cfg.AdminAddr = ""
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	svc, err := NewService(cfg, config.DefaultInstallation())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.jrnl.Close()
	r := svc.adminRouter()

	svc.journalEvent("s1", "session_open", "test")
	svc.journalEvent("s1", "session_close", "test")

	w := doRequest(t, r, http.MethodGet, "/events?limit=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /events status = %d, want 200", w.Code)
	}
	events, ok := decodeBody(t, w)["events"].([]any)
	if !ok || len(events) != 1 {
		t.Fatalf("events = %v, want 1 entry", events)
	}

	w = doRequest(t, r, http.MethodGet, "/events?limit=0", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /events?limit=0 status = %d, want 400", w.Code)
	}
}

func TestPlanEndpoint(t *testing.T) {
	testlog.Start(t)
	svc, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/plan", `{"external_id":1}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /plan status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := svc.State().Snapshot().PlanID; got != 129 {
		t.Fatalf("PlanID = %d, want 129", got)
	}

	w = doRequest(t, r, http.MethodPost, "/plan", `{"external_id":9}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown plan status = %d, want 404", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/plan", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want 400", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/plan", `{"internal_id":129}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("internal id status = %d, want 200", w.Code)
	}
}

func TestModeEndpoint(t *testing.T) {
	testlog.Start(t)
	svc, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/mode", `{"mode":"local"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /mode status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := svc.State().Mode(); got != regulator.ModeLocal {
		t.Fatalf("mode = %v, want local", got)
	}

	w = doRequest(t, r, http.MethodPost, "/mode", `{"representation":"blink"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("representation-only status = %d, want 200", w.Code)
	}
	snap := svc.State().Snapshot()
	if snap.Representation != regulator.ReprBlink || snap.Mode != regulator.ModeLocal {
		t.Fatalf("state = %v/%v, want local/blink", snap.Mode, snap.Representation)
	}

	w = doRequest(t, r, http.MethodPost, "/mode", `{"mode":"bogus"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus mode status = %d, want 400", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/mode", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want 400", w.Code)
	}
}

func TestAlarmsEndpoint(t *testing.T) {
	testlog.Start(t)
	svc, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/alarms", `{"lamp":true,"conflict":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /alarms status = %d, want 200", w.Code)
	}
	snap := svc.State().Snapshot()
	if !snap.LampAlarm || !snap.ConflictAlarm {
		t.Fatalf("alarms = lamp=%v conflict=%v, want both set", snap.LampAlarm, snap.ConflictAlarm)
	}
}

func TestDetectorPulseEndpoint(t *testing.T) {
	testlog.Start(t)
	svc, r := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/detectors/2/pulse", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /detectors/2/pulse status = %d, want 200", w.Code)
	}
	if got := svc.State().Snapshot().DetectorCounts[1]; got != 1 {
		t.Fatalf("detector 2 count = %d, want 1", got)
	}

	w = doRequest(t, r, http.MethodPost, "/detectors/99/pulse", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown detector status = %d, want 404", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/detectors/abc/pulse", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad detector id status = %d, want 400", w.Code)
	}
}

func TestAdminTokenGuard(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	svc.cfg.AdminToken = "sesame"
	r := svc.adminRouter()

	w := doRequest(t, r, http.MethodGet, "/status", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /status = %d, want 401", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/status", "", map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token /status = %d, want 401", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/status", "", map[string]string{"Authorization": "Bearer sesame"})
	if w.Code != http.StatusOK {
		t.Fatalf("authorized /status = %d, want 200", w.Code)
	}

	// Health stays open for probes.
	w = doRequest(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unauthenticated /health = %d, want 200", w.Code)
	}
}
