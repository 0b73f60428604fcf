//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/neuroscanx/internal/auth"
	"github.com/ashureev/neuroscanx/internal/config"
	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/media"
	"github.com/ashureev/neuroscanx/internal/report"
	"github.com/ashureev/neuroscanx/internal/session"
	"github.com/ashureev/neuroscanx/internal/triage"
	"github.com/go-chi/chi/v5"
)

const testDevice = "dev_00112233445566778899aabbccddeeff"

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13}

type fakeAnalyzer struct {
	mu       sync.Mutex
	result   *domain.AnalysisResult
	err      error
	requests []domain.AnalysisRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(rep *domain.Report) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + rep.ID), nil
}

type fakeStreams struct {
	mu     sync.Mutex
	closed []string
}

func (f *fakeStreams) Close(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, key)
}

func (f *fakeStreams) closedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type testServer struct {
	router   http.Handler
	sessions *session.Registry
	analyzer *fakeAnalyzer
	renderer *fakeRenderer
	streams  *fakeStreams
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	ts := &testServer{
		sessions: session.NewRegistry(auth.Stub{}),
		analyzer: &fakeAnalyzer{result: sampleResult()},
		renderer: &fakeRenderer{},
		streams:  &fakeStreams{},
	}
	cfg := &config.Config{
		AuthMode:      config.AuthModeStub,
		MaxImageBytes: 1 << 20,
		Gemini:        config.GeminiConfig{Model: "test-model"},
	}
	limiter := NewRateLimiter(rateLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	h := NewHandler(ts.sessions, ts.analyzer, ts.renderer, ts.streams, limiter, cfg)
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	ts.router = r
	return ts
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ChiefComplaint:  "Sore throat",
		SymptomAnalysis: "Pain on swallowing.",
		HealthRadar:     domain.HealthRadar{Hydration: 70, Fatigue: 40, Stress: 30, Inflammation: 60, Severity: 35},
		Differentials:   []string{"Viral pharyngitis"},
		TriageLevel:     domain.TriageMedium,
		TriageReasoning: "No airway compromise.",
		RedFlags:        []string{},
		HomeCare:        []string{"Warm fluids"},
		Soap:            domain.SoapNote{Subjective: "S", Objective: "O", Assessment: "A", Plan: "P"},
	}
}

func (ts *testServer) do(t *testing.T, tab, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(identity.SessionHeaderName, tab)
	req.AddCookie(&http.Cookie{Name: identity.DeviceCookieName, Value: testDevice})
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, tab, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return ts.do(t, tab, method, path, body, "application/json")
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (ts *testServer) signIn(t *testing.T, tab string) {
	t.Helper()
	expectStatus(t, ts.doJSON(t, tab, http.MethodPost, "/api/nav/signin", nil), http.StatusOK)
	rec := ts.doJSON(t, tab, http.MethodPost, "/api/auth/submit", auth.Credentials{Email: "pat@example.com", Password: "pw"})
	expectStatus(t, rec, http.StatusOK)
	if snap := decodeSnapshot(t, rec); snap.View != session.ViewDashboard {
		t.Fatalf("Expected dashboard, got %s", snap.View)
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestAnalyzeFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	rec := ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "sore throat", "history": "2 days"})
	expectStatus(t, rec, http.StatusOK)
	if snap := decodeSnapshot(t, rec); snap.Draft == nil || !snap.Draft.CanSubmit {
		t.Fatalf("Expected submittable draft, got %+v", snap.Draft)
	}

	rec = ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil)
	expectStatus(t, rec, http.StatusOK)
	snap := decodeSnapshot(t, rec)
	if snap.View != session.ViewResults || snap.Result == nil || snap.ReportID == "" {
		t.Fatalf("Expected results with report ID, got %+v", snap)
	}
	if got := ts.analyzer.requests[0]; got.Symptoms != "sore throat" || got.History != "2 days" {
		t.Errorf("Unexpected analysis request %+v", got)
	}

	rec = ts.doJSON(t, "tab-1", http.MethodGet, "/api/report?tab=clinician", nil)
	expectStatus(t, rec, http.StatusOK)
	var view report.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if view.ReportID != snap.ReportID || view.Badge.Label != "Medium Priority" || view.Alerts != nil {
		t.Errorf("Unexpected report header %+v", view)
	}
	if len(view.Sections) != 4 || view.Sections[0].Title != "S - Subjective" {
		t.Errorf("Expected SOAP sections, got %+v", view.Sections)
	}

	rec = ts.doJSON(t, "tab-1", http.MethodGet, "/api/report/radar.svg", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Expected SVG content type, got %s", ct)
	}

	rec = ts.doJSON(t, "tab-1", http.MethodGet, "/api/report/pdf", nil)
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "neuroscanx_report_"+snap.ReportID+".pdf") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}

	rec = ts.doJSON(t, "tab-1", http.MethodPost, "/api/results/back", nil)
	expectStatus(t, rec, http.StatusOK)
	if back := decodeSnapshot(t, rec); back.View != session.ViewDashboard || back.Result != nil {
		t.Errorf("Expected dashboard without result, got %+v", back)
	}
	if back := decodeSnapshot(t, ts.doJSON(t, "tab-1", http.MethodGet, "/api/session", nil)); back.Draft.Symptoms != "sore throat" {
		t.Errorf("Expected draft to survive return to input, got %+v", back.Draft)
	}
}

func TestAnalyzeWrongView(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	rec := ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil)
	expectStatus(t, rec, http.StatusConflict)
	if resp := decodeError(t, rec); resp.Session.View != session.ViewLanding {
		t.Errorf("Expected landing, got %s", resp.Session.View)
	}
	if ts.analyzer.calls() != 0 {
		t.Error("Expected no analyzer call")
	}
}

func TestAnalyzeEmptySubmission(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")
	ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "   ", "history": "only history"})

	rec := ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	resp := decodeError(t, rec)
	if resp.Session.View != session.ViewDashboard || resp.Session.Error != "" {
		t.Errorf("Expected unchanged dashboard, got %+v", resp.Session)
	}
	if ts.analyzer.calls() != 0 {
		t.Error("Expected no analyzer call")
	}
}

func TestAnalyzeFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.analyzer.result = nil
	ts.analyzer.err = &triage.ModelError{Err: errors.New("quota exceeded")}
	ts.signIn(t, "tab-1")
	ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "cough"})

	rec := ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil)
	expectStatus(t, rec, http.StatusBadGateway)
	resp := decodeError(t, rec)
	if resp.Kind != triage.KindModel {
		t.Errorf("Expected kind %s, got %s", triage.KindModel, resp.Kind)
	}
	if !strings.HasPrefix(resp.Session.Error, "Unable to complete analysis. ") || !strings.Contains(resp.Session.Error, "quota exceeded") {
		t.Errorf("Unexpected banner %q", resp.Session.Error)
	}
	if resp.Session.View != session.ViewDashboard || resp.Session.Analyzing {
		t.Errorf("Expected idle dashboard, got %+v", resp.Session)
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 1)
	ts.signIn(t, "tab-1")
	ts.analyzer.err = errors.New("transient")
	ts.analyzer.result = nil
	ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "cough"})

	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil), http.StatusBadGateway)
	// A second tab on the same device shares the budget.
	ts.signIn(t, "tab-2")
	ts.doJSON(t, "tab-2", http.MethodPut, "/api/draft", map[string]string{"symptoms": "cough"})
	expectStatus(t, ts.doJSON(t, "tab-2", http.MethodPost, "/api/analyze", nil), http.StatusTooManyRequests)

	if ts.analyzer.calls() != 1 {
		t.Errorf("Expected 1 model call, got %d", ts.analyzer.calls())
	}
	s, ok := ts.sessions.Get(testDevice + ":tab-2")
	if !ok {
		t.Fatal("Expected tab-2 session to exist")
	}
	if snap := s.Snapshot(); snap.Analyzing || snap.Error != "" {
		t.Errorf("Expected untouched session after 429, got analyzing=%v error=%q", snap.Analyzing, snap.Error)
	}
}

func TestAnalyzeRejectedSubmissionsKeepBudget(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 1)
	ts.signIn(t, "tab-1")

	for i := 0; i < 3; i++ {
		expectStatus(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil), http.StatusUnprocessableEntity)
	}
	// Wrong view is rejected before the limiter too.
	expectStatus(t, ts.doJSON(t, "tab-9", http.MethodPost, "/api/analyze", nil), http.StatusConflict)

	ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "cough"})
	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil), http.StatusOK)
	if ts.analyzer.calls() != 1 {
		t.Errorf("Expected 1 model call, got %d", ts.analyzer.calls())
	}
}

func TestSubmitCredentialsSilentRejection(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.doJSON(t, "tab-1", http.MethodPost, "/api/nav/signup", nil)

	rec := ts.doJSON(t, "tab-1", http.MethodPost, "/api/auth/submit", auth.Credentials{Email: "pat@example.com"})
	expectStatus(t, rec, http.StatusOK)
	if snap := decodeSnapshot(t, rec); snap.View != session.ViewSignup || snap.Identity != nil || snap.Error != "" {
		t.Errorf("Expected unchanged signup view, got %+v", snap)
	}
}

func TestNavigation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	steps := []struct {
		path   string
		status int
		view   session.View
	}{
		{path: "/api/nav/switch", status: http.StatusConflict, view: session.ViewLanding},
		{path: "/api/nav/signup", status: http.StatusOK, view: session.ViewSignup},
		{path: "/api/nav/switch", status: http.StatusOK, view: session.ViewLogin},
		{path: "/api/nav/signin", status: http.StatusConflict, view: session.ViewLogin},
		{path: "/api/nav/back", status: http.StatusOK, view: session.ViewLanding},
		{path: "/api/auth/logout", status: http.StatusConflict, view: session.ViewLanding},
	}
	for _, step := range steps {
		rec := ts.doJSON(t, "tab-1", http.MethodPost, step.path, nil)
		expectStatus(t, rec, step.status)
		var view session.View
		if step.status == http.StatusOK {
			view = decodeSnapshot(t, rec).View
		} else {
			view = decodeError(t, rec).Session.View
		}
		if view != step.view {
			t.Errorf("%s: expected view %s, got %s", step.path, step.view, view)
		}
	}
}

func TestTabsAreIsolated(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	if snap := decodeSnapshot(t, ts.doJSON(t, "tab-2", http.MethodGet, "/api/session", nil)); snap.View != session.ViewLanding {
		t.Errorf("Expected second tab on landing, got %s", snap.View)
	}
	if ts.sessions.Len() != 2 {
		t.Errorf("Expected 2 sessions, got %d", ts.sessions.Len())
	}
}

func TestLogoutClosesSpeechStream(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	rec := ts.doJSON(t, "tab-1", http.MethodPost, "/api/auth/logout", nil)
	expectStatus(t, rec, http.StatusOK)
	if snap := decodeSnapshot(t, rec); snap.View != session.ViewLanding || snap.Identity != nil {
		t.Errorf("Expected cleared landing, got %+v", snap)
	}
	if keys := ts.streams.closedKeys(); len(keys) != 1 || keys[0] != identity.SessionKey(testDevice, "tab-1") {
		t.Errorf("Expected stream of tab-1 closed, got %v", keys)
	}
}

func TestVoiceToggle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	if snap := decodeSnapshot(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/draft/voice", nil)); !snap.Draft.Listening {
		t.Error("Expected listening on")
	}
	if snap := decodeSnapshot(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/draft/voice", nil)); snap.Draft.Listening {
		t.Error("Expected listening off")
	}
	if keys := ts.streams.closedKeys(); len(keys) != 1 {
		t.Errorf("Expected stream closed when listening stops, got %v", keys)
	}
	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodDelete, "/api/draft/voice", nil), http.StatusOK)
}

func multipartImages(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", "application/octet-stream")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		if _, err := part.Write(pngHeader); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadImagesKeepsFirstTwo(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	body, ct := multipartImages(t, "a.png", "b.png", "c.png")
	rec := ts.do(t, "tab-1", http.MethodPost, "/api/draft/images", body, ct)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get(DroppedHeader); got != "1" {
		t.Errorf("Expected 1 dropped, got %s", got)
	}
	snap := decodeSnapshot(t, rec)
	images := snap.Draft.Images
	if len(images) != 2 || images[0].Name != "a.png" || images[1].Label != "Comparison" {
		t.Fatalf("Unexpected selection %+v", images)
	}
	if images[0].MIMEType != "image/png" {
		t.Errorf("Expected sniffed PNG, got %s", images[0].MIMEType)
	}
	if !snap.Draft.CanSubmit {
		t.Error("Expected images alone to make the draft submittable")
	}

	rec = ts.do(t, "tab-1", http.MethodDelete, "/api/draft/images/0", nil, "")
	expectStatus(t, rec, http.StatusOK)
	images = decodeSnapshot(t, rec).Draft.Images
	if len(images) != 1 || images[0].Name != "b.png" || images[0].Label != "Primary" {
		t.Errorf("Expected b.png promoted to primary, got %+v", images)
	}

	expectStatus(t, ts.do(t, "tab-1", http.MethodDelete, "/api/draft/images/5", nil, ""), http.StatusNotFound)
}

func TestUploadRejectsNonImage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("images", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := fw.Write([]byte("plain text, not a picture")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rec := ts.do(t, "tab-1", http.MethodPost, "/api/draft/images", &buf, mw.FormDataContentType())
	expectStatus(t, rec, http.StatusUnsupportedMediaType)
}

func TestReportRequiresResults(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.signIn(t, "tab-1")

	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodGet, "/api/report", nil), http.StatusConflict)
	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodGet, "/api/report?tab=nurse", nil), http.StatusBadRequest)
}

func TestPDFFontUnavailable(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	ts.renderer.err = report.ErrFontUnavailable
	ts.signIn(t, "tab-1")
	ts.doJSON(t, "tab-1", http.MethodPut, "/api/draft", map[string]string{"symptoms": "rash"})
	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodPost, "/api/analyze", nil), http.StatusOK)

	expectStatus(t, ts.doJSON(t, "tab-1", http.MethodGet, "/api/report/pdf", nil), http.StatusServiceUnavailable)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: session.ErrWrongView, want: http.StatusConflict},
		{err: session.ErrAnalysisInFlight, want: http.StatusConflict},
		{err: domain.ErrEmptySubmission, want: http.StatusUnprocessableEntity},
		{err: auth.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: auth.ErrAccountExists, want: http.StatusConflict},
		{err: auth.ErrWeakPassword, want: http.StatusUnprocessableEntity},
		{err: media.ErrImageTooLarge, want: http.StatusRequestEntityTooLarge},
		{err: ErrRateLimited, want: http.StatusTooManyRequests},
		{err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestGetConfig(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 10)
	rec := ts.doJSON(t, "tab-1", http.MethodGet, "/api/config", nil)
	expectStatus(t, rec, http.StatusOK)

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if got["max_images"] != float64(domain.MaxImages) || got["auth_mode"] != "stub" {
		t.Errorf("Unexpected config %v", got)
	}
}
