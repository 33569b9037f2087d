package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"google.golang.org/genai"

	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/pipeline"
	"newsroom/internal/store"
)

type stubLLM struct{}

func (stubLLM) GenerateStructured(_ context.Context, _, _ string, schema *genai.Schema, out any, _ llm.Options) error {
	var raw string
	switch {
	case schema.Properties["keywords"] != nil:
		raw = `{"keywords":["alpha","beta","gamma","delta","epsilon"]}`
	case schema.Properties["is_relevant"] != nil:
		raw = `{"is_relevant":true}`
	case schema.Properties["score"] != nil:
		raw = `{"score":8.0,"tier":"Essential"}`
	case schema.Properties["summary_text"] != nil:
		raw = `{"summary_text":"summary","why_it_matters":["reason"]}`
	default:
		return fmt.Errorf("unexpected schema")
	}
	return json.Unmarshal([]byte(raw), out)
}

func (stubLLM) GenerateText(_ context.Context, _, _ string, _ llm.Options) (string, error) {
	return "intro", nil
}

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *stubFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no such page: %s", url)
	}
	return body, nil
}

const testToken = "secret-token"

func newTestServer(t *testing.T) (*Server, *store.Store, *stubFetcher) {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	fetcher := &stubFetcher{pages: map[string]string{}}
	p := pipeline.New(s, stubLLM{}, fetcher)
	cfg := &config.Config{}
	cfg.Server.AdminToken = testToken
	return NewServer(cfg, s, p), s, fetcher
}

func doRequest(t *testing.T, srv *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateRunDefaults(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/runs",
		map[string]any{"prompt_topic": "AI serving"}, testToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var run core.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if run.LookbackDays != 7 || run.Mode != core.ModeAuto || run.MinFitScore != 6.0 {
		t.Errorf("Unexpected defaults: %+v", run)
	}
	if run.MaxTotalArticles != 12 || run.MaxPerDomain != 4 || !run.RankingEnabled {
		t.Errorf("Unexpected defaults: %+v", run)
	}
}

func TestCreateRunRejectsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/runs", map[string]any{}, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty run, got %d", rec.Code)
	}
}

func TestAdminTokenRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/runs",
		map[string]any{"prompt_topic": "x"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/runs",
		map[string]any{"prompt_topic": "x"}, "wrong-token")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/runs", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Read routes should not need a token, got %d", rec.Code)
	}
}

func TestGetRunWithPhases(t *testing.T) {
	srv, s, _ := newTestServer(t)
	run := &core.Run{Topic: "x", Mode: core.ModeAuto}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/runs/"+run.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var detail struct {
		Run    *core.Run     `json:"run"`
		Phases []*core.Phase `json:"phases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if detail.Run.ID != run.ID || len(detail.Phases) != len(core.PhaseOrder) {
		t.Errorf("Unexpected detail: %+v", detail)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/runs/missing", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", rec.Code)
	}
}

func TestRunPhaseEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	run := &core.Run{Topic: "AI", Keywords: []string{"ai"}, Mode: core.ModeAuto}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost,
		"/api/runs/"+run.ID+"/phase/extract_information", nil, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []*pipeline.Result `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Status != core.PhaseCompleted {
		t.Errorf("Unexpected results: %+v", resp.Results)
	}

	rec = doRequest(t, srv, http.MethodPost,
		"/api/runs/"+run.ID+"/phase/not_a_phase", nil, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown phase, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost,
		"/api/runs/missing/phase/extract_information", nil, testToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", rec.Code)
	}
}

func TestRunPhaseConflictMapsTo409(t *testing.T) {
	srv, s, _ := newTestServer(t)
	run := &core.Run{Topic: "AI", Keywords: []string{"ai"}, Mode: core.ModeAuto}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if err := s.BeginPhase(run.ID, core.PhaseExtractInformation); err != nil {
		t.Fatalf("Failed to begin phase: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost,
		"/api/runs/"+run.ID+"/phase/extract_information", nil, testToken)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for in-progress phase, got %d", rec.Code)
	}
}

func TestNewsletterAndExportEndpoints(t *testing.T) {
	srv, s, _ := newTestServer(t)
	run := &core.Run{Topic: "x", Mode: core.ModeAuto}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/runs/"+run.ID+"/newsletter", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with no newsletter, got %d", rec.Code)
	}

	err := s.CreateNewsletter(&core.Newsletter{RunID: run.ID, Title: "issue", HTML: "<html></html>"})
	if err != nil {
		t.Fatalf("Failed to create newsletter: %v", err)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/runs/"+run.ID+"/newsletter", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/runs/"+run.ID+"/export/json", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for export, got %d", rec.Code)
	}
	var exp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &exp); err != nil {
		t.Fatalf("Export is not valid JSON: %v", err)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/profiles",
		map[string]any{"name": "ai-weekly", "default_keywords": []string{"llm"}}, testToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/profiles",
		map[string]any{}, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unnamed profile, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/profiles", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var profiles []*core.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &profiles); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "ai-weekly" {
		t.Errorf("Unexpected profiles: %+v", profiles)
	}
}

func TestCreateRunInheritsProfileLists(t *testing.T) {
	srv, s, _ := newTestServer(t)

	profile := &core.Profile{
		Name:              "feeds",
		DefaultSourceURLs: []string{"https://example.com/feed.xml"},
		DefaultKeywords:   []string{"inference"},
	}
	if err := s.CreateProfile(profile); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/runs",
		map[string]any{"prompt_topic": "AI", "profile_id": profile.ID}, testToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var run core.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(run.SourceURLs) != 1 || run.SourceURLs[0] != "https://example.com/feed.xml" {
		t.Errorf("Run should inherit profile source urls: %v", run.SourceURLs)
	}
	if len(run.Keywords) != 1 || run.Keywords[0] != "inference" {
		t.Errorf("Run should inherit profile keywords: %v", run.Keywords)
	}
}
