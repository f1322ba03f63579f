package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/agent/telemetry"
	"github.com/mohammad-safakhou/itturia/internal/sefaria"
	"github.com/mohammad-safakhou/itturia/internal/store"
	"github.com/mohammad-safakhou/itturia/provider"
)

// fakeModel answers every prompt kind with a fixed reply.
type fakeModel struct {
	name     string
	evaluate string
}

func (m *fakeModel) Name() string  { return m.name }
func (m *fakeModel) Model() string { return "fake-1" }

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Create a search query"):
		return `"ים סוף"`, nil
	case strings.HasPrefix(prompt, "Evaluate the search results"):
		return m.evaluate, nil
	}
	return "הים נקרע לשניים [שמות יד]", nil
}

type fakeIndex struct {
	healthy bool
	hits    []core.Hit
}

func (f *fakeIndex) Search(context.Context, string, int) ([]core.Hit, error) { return f.hits, nil }
func (f *fakeIndex) Validate(context.Context) bool                           { return f.healthy }

type fixture struct {
	srv   *Server
	store *store.Memory
	idx   *fakeIndex
}

func newFixture(t *testing.T, mutate func(*config.Config, *Deps)) *fixture {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Address: ":0", RequestTimeout: 10 * time.Second},
		Loop:   config.LoopConfig{NumResults: 5, MaxIterations: 3, CallTimeout: 5 * time.Second},
	}
	idx := &fakeIndex{healthy: true, hits: []core.Hit{
		{Score: 2.5, Title: "שמות", Reference: "שמות יד", Path: "torah/shemot.txt", Text: "ויבקעו המים", Highlights: []string{"ויבקעו המים"}},
	}}
	mem := store.NewMemory(time.Hour)
	tele, err := telemetry.New(prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	models := provider.NewStaticRegistry([]provider.LanguageModel{
		&fakeModel{name: "primary", evaluate: "CONFIDENCE: 0.9\nDECISION: ACCEPT\nEXPLANATION: יש מידע"},
		&fakeModel{name: "doubtful", evaluate: "CONFIDENCE: 0.1\nDECISION: REFINE\nEXPLANATION: חסר"},
	})
	deps := Deps{Config: cfg, Models: models, Index: idx, Store: mem, Recorder: tele}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	s, err := New(context.Background(), deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{srv: s, store: mem, idx: idx}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestSearchReturnsStepsAndStoresRun(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/search", `{"query":"מה קרה בים סוף?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.RunID == "" || resp.Results == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Results.FinalResult.Outcome != core.OutcomeAccepted || resp.Results.FinalResult.Rounds != 1 {
		t.Fatalf("expected accepted in one round, got %+v", resp.Results.FinalResult)
	}
	if len(resp.Results.Steps) != 3 {
		t.Fatalf("expected compose, search and evaluate steps, got %d", len(resp.Results.Steps))
	}
	if len(resp.Results.FinalResult.Sources) != 1 {
		t.Fatalf("expected one source, got %+v", resp.Results.FinalResult.Sources)
	}

	rec = f.do(t, http.MethodGet, "/api/runs/"+resp.RunID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored run, got %d", rec.Code)
	}
	var run store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Question != "מה קרה בים סוף?" || run.Provider != "primary" {
		t.Fatalf("unexpected run %+v", run)
	}

	rec = f.do(t, http.MethodGet, "/api/runs?limit=5", "", nil)
	var runs []store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("expected one listed run, got %d (%v)", len(runs), err)
	}
}

func TestSearchUsesRequestedProviderAndLimits(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/search", `{"query":"שאלה","provider":"doubtful","maxIterations":2}`, nil)
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := resp.Results.FinalResult
	if got.Outcome != core.OutcomeExhausted || got.Rounds != 2 {
		t.Fatalf("expected exhausted after 2 rounds, got %s/%d", got.Outcome, got.Rounds)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("expected evidence from both rounds, got %d", len(got.Sources))
	}
}

func TestSearchRejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty query", `{"query":"   "}`, http.StatusBadRequest},
		{"missing query", `{}`, http.StatusBadRequest},
		{"too many iterations", `{"query":"q","maxIterations":50}`, http.StatusBadRequest},
		{"unknown provider", `{"query":"q","provider":"nope"}`, http.StatusBadRequest},
		{"malformed json", `{"query":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/api/search", tc.body, nil)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
		var e HTTPError
		if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" {
			t.Fatalf("%s: expected json error envelope, got %s", tc.name, rec.Body.String())
		}
	}
}

func TestUnhealthyIndex(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Deps) {
		d.Index = &fakeIndex{healthy: false}
	})
	if rec := f.do(t, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/search", `{"query":"q"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected search 503, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
}

func TestStreamEmitsStepsThenResult(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/search/stream", `{"query":"מה קרה בים סוף?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var events []string
	var last string
	sc := bufio.NewScanner(rec.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			last = strings.TrimPrefix(line, "data: ")
		}
	}
	if len(events) != 4 {
		t.Fatalf("expected 3 steps and a result, got %v", events)
	}
	for _, ev := range events[:3] {
		if ev != "step" {
			t.Fatalf("expected step events first, got %v", events)
		}
	}
	if events[3] != "result" {
		t.Fatalf("expected result last, got %v", events)
	}
	var res StreamResult
	if err := json.Unmarshal([]byte(last), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.RunID == "" || res.FinalResult.Answer == "" {
		t.Fatalf("unexpected result payload %+v", res)
	}
	if _, err := f.store.GetRun(context.Background(), res.RunID); err != nil {
		t.Fatalf("expected streamed run to be stored: %v", err)
	}
}

func TestProvidersAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, func(_ *config.Config, d *Deps) {
		tele, err := telemetry.New(reg, nil)
		if err != nil {
			t.Fatalf("telemetry: %v", err)
		}
		d.Recorder = tele
		d.Metrics = reg
	})
	rec := f.do(t, http.MethodGet, "/api/providers", "", nil)
	var pr ProvidersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pr.Default != "primary" || len(pr.Providers) != 2 {
		t.Fatalf("unexpected providers %+v", pr)
	}
	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "itturia_index_healthy 1") {
		t.Fatalf("expected healthy gauge in metrics output")
	}
}

func TestAuthFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	f := newFixture(t, func(cfg *config.Config, _ *Deps) {
		cfg.Server.JWTSecret = "test-secret"
		cfg.Server.AdminPasswordHash = string(hash)
		cfg.Server.TokenTTL = time.Hour
	})
	if rec := f.do(t, http.MethodGet, "/api/providers", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/auth/token", `{"password":"wrong"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/auth/token", `{"password":"s3cret-pass"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected token, got %d: %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil || tok.Token == "" {
		t.Fatalf("decode token: %v", err)
	}
	if time.Until(tok.ExpiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", tok.ExpiresAt)
	}
	if rec := f.do(t, http.MethodGet, "/api/providers", "", map[string]string{"Authorization": "Bearer " + tok.Token}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	other, _ := SignJWT("admin", []byte("other-secret"), time.Hour)
	if rec := f.do(t, http.MethodGet, "/api/providers", "", map[string]string{"Authorization": "Bearer " + other}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", rec.Code)
	}
	expired, _ := SignJWT("admin", []byte("test-secret"), -time.Minute)
	if rec := f.do(t, http.MethodGet, "/api/providers", "", map[string]string{"Authorization": "Bearer " + expired}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestTokenEndpointDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodPost, "/api/auth/token", `{"password":"x"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when auth is off, got %d", rec.Code)
	}
}

func TestTextsProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v3/texts/"):
			_, _ = w.Write([]byte(`{"ref":"Genesis 1:1","versions":[{"versionTitle":"Tanach","language":"he","text":"בראשית ברא"}]}`))
		case strings.HasPrefix(r.URL.Path, "/api/related/"):
			_, _ = w.Write([]byte(`{"links":[{"type":"commentary","sourceHeRef":"רש\"י על בראשית א:א"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()
	client, err := sefaria.New(config.SefariaConfig{BaseURL: upstream.URL, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("sefaria: %v", err)
	}
	f := newFixture(t, func(_ *config.Config, d *Deps) { d.Sefaria = client })

	rec := f.do(t, http.MethodGet, "/api/texts/Genesis%201:1", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "בראשית ברא") {
		t.Fatalf("unexpected text response %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/commentaries/Genesis%201:1", "", nil)
	var cr CommentariesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cr); err != nil || len(cr.Commentaries) != 1 {
		t.Fatalf("unexpected commentaries %s (%v)", rec.Body.String(), err)
	}
}

func TestTextsRoutesAbsentWithoutSefaria(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodGet, "/api/texts/Genesis%201:1", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
