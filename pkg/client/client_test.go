package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripFunc) *Client {
	return New("https://analytics.example.com", time.Second, WithHTTPClient(&http.Client{Transport: rt}))
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestWeeklyImpactSendsWeeks(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != PathWeeklyImpact {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("weeks"); got != "8" {
			t.Fatalf("weeks = %q, want 8", got)
		}
		return jsonResponse(http.StatusOK, `[{"week": "2019-11-18", "impact": {"downstream_broken_commit_count": 4, "failed_downstream_build_count": 9}}]`), nil
	})

	points, err := c.WeeklyImpact(context.Background(), 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].Impact.DownstreamBrokenCommitCount != 4 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestFailureModesFlattensEnvelope(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[{"db_id": 1, "record": {"label": "flaky", "revertible": true}}, {"db_id": 2, "record": {"label": "infra", "revertible": false}}]`), nil
	})

	modes, err := c.FailureModes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(modes) != 2 || modes[1].Label != "infra" || modes[1].Revertible {
		t.Fatalf("unexpected modes: %+v", modes)
	}
}

func TestPatternsSource(t *testing.T) {
	tests := []struct {
		name      string
		patternID string
		wantPath  string
		wantQuery string
	}{
		{name: "list", patternID: "", wantPath: PathPatterns, wantQuery: ""},
		{name: "single", patternID: "12", wantPath: PathPattern, wantQuery: "pattern_id=12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, query := PatternsSource(tt.patternID)
			if path != tt.wantPath {
				t.Errorf("path = %v, want %v", path, tt.wantPath)
			}
			if query.Encode() != tt.wantQuery {
				t.Errorf("query = %v, want %v", query.Encode(), tt.wantQuery)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		rt    roundTripFunc
		check func(error) bool
		kind  Kind
	}{
		{
			name: "transport failure",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			check: func(err error) bool { return errors.Is(err, ErrNetwork) },
			kind:  KindNetwork,
		},
		{
			name: "malformed body",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"failed_builds": "lots"`), nil
			},
			check: func(err error) bool { return errors.Is(err, ErrMalformed) },
			kind:  KindMalformed,
		},
		{
			name: "server error",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusInternalServerError, `boom`), nil
			},
			check: func(err error) bool { return errors.Is(err, ErrUpstreamStatus) },
			kind:  KindUpstreamStatus,
		},
		{
			name: "deadline",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, context.DeadlineExceeded
			},
			check: func(err error) bool { return errors.Is(err, ErrTimeout) },
			kind:  KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(tt.rt)
			_, err := c.Summary(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v did not match expected kind", err)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}
}

func TestMutationPayloads(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotBody = nil
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	if err := c.UpdateMode(ctx, 42, 3); err != nil {
		t.Fatalf("UpdateMode() error = %v", err)
	}
	if gotPath != PathModeUpdate || gotBody["cause_id"] != float64(42) || gotBody["mode"] != float64(3) {
		t.Errorf("mode update sent %s %v", gotPath, gotBody)
	}

	if err := c.UpdateDescription(ctx, 42, "<b>flaky</b>"); err != nil {
		t.Fatalf("UpdateDescription() error = %v", err)
	}
	if gotPath != PathDescriptionUpdate || gotBody["description"] != "<b>flaky</b>" {
		t.Errorf("description update sent %s %v", gotPath, gotBody)
	}

	if err := c.DeleteBreakage(ctx, 42); err != nil {
		t.Fatalf("DeleteBreakage() error = %v", err)
	}
	if gotPath != PathDelete || len(gotBody) != 1 {
		t.Errorf("delete sent %s %v", gotPath, gotBody)
	}
}

func TestMutationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown cause", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).DeleteBreakage(context.Background(), 7)
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("expected mutation failure, got %v", err)
	}

	var ce *Error
	if !errors.As(err, &ce) || ce.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400 in error, got %v", err)
	}
}

func TestUnconfiguredBaseURL(t *testing.T) {
	_, err := New("", time.Second).AnnotatedBreakages(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}
