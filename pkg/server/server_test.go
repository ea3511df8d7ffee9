package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/ci-breakage-dashboard/pkg/client"
	"github.com/your-org/ci-breakage-dashboard/pkg/config"
	"github.com/your-org/ci-breakage-dashboard/pkg/generator"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
)

var upstreamBodies = map[string]string{
	client.PathListFailureModes: `[{"db_id": 1, "record": {"label": "flaky", "revertible": true}}, {"db_id": 2, "record": {"label": "infra", "revertible": false}}]`,
	client.PathAnnotated: `[{"start": {"db_id": 42, "record": {"author": "alice", "created": "2019-11-21T10:00:00Z", "payload": {
		"breakage_mode": {"payload": 1}, "description": "bad merge"}}}, "end": null,
		"impact_stats": {"downstream_broken_commit_count": 3, "failed_downstream_build_count": 11},
		"spanned_commit_count": 2, "commit_timespan_seconds": 60}]`,
	client.PathAuthorStats:       `[]`,
	client.PathDetected:          `[]`,
	client.PathLeftover:          `[]`,
	client.PathWeeklyImpact:      `[]`,
	client.PathFailureModeCounts: `{"rows": []}`,
	client.PathStep:              `{"rows": []}`,
	client.PathSummary:           `{"failed_builds": 10, "visited_builds": 8, "explained_failures": 5, "timed_out_steps": 1, "steps_with_a_match": 2}`,
	client.PathPatterns:          `[]`,
	client.PathPattern:           `[]`,
	client.PathPatternMatches:    `[]`,
}

type fakeAPI struct {
	mu    sync.Mutex
	posts map[string][]url.Values
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		vals := url.Values{}
		for k, v := range payload {
			b, _ := json.Marshal(v)
			vals.Set(k, string(b))
		}
		f.mu.Lock()
		f.posts[r.URL.Path] = append(f.posts[r.URL.Path], vals)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
		return
	}
	body, ok := upstreamBodies[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) postsTo(path string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[path]
}

func newTestServer(t *testing.T) (*Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{posts: map[string][]url.Values{}}
	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg := config.NewConfig()
	cfg.APIBaseURL = upstream.URL
	cfg.TimeZone = "UTC"
	cfg.RequestTimeout = time.Second
	cfg.AssetsDir = filepath.Join("..", "..", "web", "assets")

	r, err := renderer.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	gen, err := generator.NewGenerator(cfg, client.New(upstream.URL, 5*time.Second), r)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewServer(cfg, gen, r)
	if err != nil {
		t.Fatal(err)
	}
	return s, api
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPages(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/", wantStatus: http.StatusOK, wantBody: "CI failure overview"},
		{path: "/index.html", wantStatus: http.StatusOK, wantBody: "container-visited-fraction"},
		{path: "/code-breakages.html", wantStatus: http.StatusOK, wantBody: `action="/breakages/42/mode"`},
		{path: "/pattern-details.html?pattern_id=3", wantStatus: http.StatusOK, wantBody: "error-display"},
		{path: "/pattern-details.html?pattern_id=abc", wantStatus: http.StatusBadRequest, wantBody: "pattern_id"},
		{path: "/images/trash-icon.svg", wantStatus: http.StatusOK, wantBody: "<svg"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	valid := uuid.NewString()

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "missing", header: ""},
		{name: "garbage", header: "not-an-id"},
		{name: "uuid v4", header: valid, wantSame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set(requestIDHeader, tt.header)
			}
			rec := do(t, s, req)

			got := rec.Header().Get(requestIDHeader)
			if tt.wantSame && got != tt.header {
				t.Errorf("request id = %q, want %q", got, tt.header)
			}
			if parsed, err := uuid.Parse(got); err != nil || parsed.Version() != 4 {
				t.Errorf("request id %q is not a UUIDv4", got)
			}
		})
	}
}

func TestView(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/view/code-breakages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view struct {
		Kind   string `json:"kind"`
		Tables []struct {
			ID   string `json:"id"`
			Rows []any  `json:"rows"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.Kind != "code-breakages" || len(view.Tables) != 4 || len(view.Tables[0].Rows) != 1 {
		t.Errorf("view = %+v", view)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/view/index?format=yaml", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "kind: index") {
		t.Errorf("yaml body = %s", rec.Body.String())
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/view/bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown view status = %d", rec.Code)
	}
}

func TestEdits(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		upstream   string
		wantStatus int
		wantPosts  int
		wantNotice string
	}{
		{
			name:       "mode",
			path:       "/breakages/42/mode",
			form:       url.Values{"mode": {"2"}},
			upstream:   client.PathModeUpdate,
			wantStatus: http.StatusSeeOther,
			wantPosts:  1,
		},
		{
			name:       "bad mode",
			path:       "/breakages/42/mode",
			form:       url.Values{"mode": {"x"}},
			upstream:   client.PathModeUpdate,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "description",
			path:       "/breakages/42/description",
			form:       url.Values{"description": {"infra outage"}},
			upstream:   client.PathDescriptionUpdate,
			wantStatus: http.StatusSeeOther,
			wantPosts:  1,
		},
		{
			name:       "unconfirmed delete",
			path:       "/breakages/42/delete",
			form:       url.Values{"confirm": {""}},
			upstream:   client.PathDelete,
			wantStatus: http.StatusSeeOther,
			wantNotice: "The change was not saved: cause #42: delete requires confirmation",
		},
		{
			name:       "confirmed delete",
			path:       "/breakages/42/delete",
			form:       url.Values{"confirm": {"yes"}},
			upstream:   client.PathDelete,
			wantStatus: http.StatusSeeOther,
			wantPosts:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, api := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := do(t, s, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := len(api.postsTo(tt.upstream)); got != tt.wantPosts {
				t.Errorf("upstream posts = %d, want %d", got, tt.wantPosts)
			}
			if rec.Code != http.StatusSeeOther {
				return
			}

			loc, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("bad Location: %v", err)
			}
			if loc.Path != "/code-breakages.html" {
				t.Errorf("redirect path = %q", loc.Path)
			}
			if got := loc.Query().Get(editErrorParam); got != tt.wantNotice {
				t.Errorf("redirect notice = %q, want %q", got, tt.wantNotice)
			}
		})
	}
}

func TestEditRedirectLandsOnPage(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/breakages/42/delete", strings.NewReader("confirm="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("redirect target status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "delete requires confirmation") {
		t.Error("edit failure should be shown on the page")
	}

	// relative links on the landing page resolve next to it
	base, _ := url.Parse("http://dashboard" + "/code-breakages.html")
	for _, ref := range []string{"index.html", "images/trash-icon.svg"} {
		if !strings.Contains(body, `"`+ref) {
			t.Errorf("page should reference %s", ref)
			continue
		}
		target, _ := base.Parse(ref)
		got := do(t, s, httptest.NewRequest(http.MethodGet, target.Path, nil))
		if got.Code != http.StatusOK {
			t.Errorf("GET %s = %d", target.Path, got.Code)
		}
	}
}

func TestEditJSONResponse(t *testing.T) {
	s, api := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/breakages/42/description", strings.NewReader("description=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	rec := do(t, s, req)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var view struct {
		Notices []renderer.Notice `json:"notices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(view.Notices) != 0 {
		t.Errorf("notices = %+v", view.Notices)
	}
	posts := api.postsTo(client.PathDescriptionUpdate)
	if len(posts) != 1 || posts[0].Get("description") != `"x"` || posts[0].Get("cause_id") != "42" {
		t.Errorf("upstream payload = %v", posts)
	}
}

func TestSortQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/code-breakages.html?table=annotated-breakages-table&sort=bogus", nil))
	if !strings.Contains(rec.Body.String(), "unknown column") {
		t.Error("bad sort column should leave a notice")
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/code-breakages.html?table=annotated-breakages-table&sort=spanned_commit_count", nil))
	if !strings.Contains(rec.Body.String(), "desc=1") {
		t.Error("sorted column link should toggle to descending")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	// load a page so panels exist
	do(t, s, httptest.NewRequest(http.MethodGet, "/code-breakages.html", nil))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health struct {
		Status string                  `json:"status"`
		Panels []generator.PanelStatus `json:"panels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if health.Status != "ok" || len(health.Panels) == 0 {
		t.Errorf("health = %+v", health)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "breakage_dashboard_panel_loads_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
