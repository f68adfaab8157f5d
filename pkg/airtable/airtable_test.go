package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	configx "github.com/tanpawarit/agent-orchestrator/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "key-test"
	}
	if cfg.BaseID == "" {
		cfg.BaseID = "appTest"
	}

	client, err := NewClient(cfg,
		WithHTTPClient(server.Client()),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestFormulaEscapesValue(t *testing.T) {
	t.Parallel()

	got := Formula(contractx.Filter{Field: "Agent Name", Value: `o'brien\agent`})
	want := `{Agent Name} = 'o\'brien\\agent'`
	if got != want {
		t.Fatalf("Formula() = %q, want %q", got, want)
	}
}

func TestQuerySendsFormulaAndAuth(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/appTest/Agent Activity" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("filterByFormula"); got != "{Agent Name} = 'pm_agent'" {
			t.Errorf("filterByFormula = %q", got)
		}
		if got := r.URL.Query().Get("maxRecords"); got != "1" {
			t.Errorf("maxRecords = %q", got)
		}
		fmt.Fprint(w, `{"records":[{"id":"rec1","createdTime":"2026-01-01T10:00:00.000Z","fields":{"Agent Name":"pm_agent","Status":"Success"}}]}`)
	}, Config{})

	recs, err := client.Query(context.Background(), "Agent Activity", contractx.Filter{Field: "Agent Name", Value: "pm_agent", MaxRecords: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec1" {
		t.Fatalf("unexpected records: %#v", recs)
	}
	if recs[0].String("Status") != "Success" {
		t.Fatalf("Status = %q", recs[0].String("Status"))
	}
	if recs[0].CreatedTime.IsZero() {
		t.Fatal("createdTime not parsed")
	}
}

func TestQueryFollowsOffset(t *testing.T) {
	t.Parallel()

	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("filterByFormula") != "" {
			t.Errorf("zero filter must not send a formula")
		}
		switch n {
		case 1:
			if r.URL.Query().Get("offset") != "" {
				t.Errorf("first page must not carry an offset")
			}
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"Name":"A"}}],"offset":"itr2"}`)
		default:
			if got := r.URL.Query().Get("offset"); got != "itr2" {
				t.Errorf("offset = %q, want itr2", got)
			}
			fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{"Name":"B"}}]}`)
		}
	}, Config{})

	recs, err := client.Query(context.Background(), "Features", contractx.Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recs) != 2 || recs[1].ID != "rec2" {
		t.Fatalf("unexpected records: %#v", recs)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
}

func TestCreatePostsFields(t *testing.T) {
	t.Parallel()

	var got recordPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"id":"recNew","fields":{}}`)
	}, Config{})

	id, err := client.Create(context.Background(), "Logs", contractx.Fields{"Prompt": "hello", "Agent": "unrouted_agent"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != "recNew" {
		t.Fatalf("Create() id = %q", id)
	}
	if got.Fields["Prompt"] != "hello" || got.Fields["Agent"] != "unrouted_agent" {
		t.Fatalf("unexpected payload: %#v", got.Fields)
	}
}

func TestUpdatePatchesRecord(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/appTest/Milestones/rec42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"rec42","fields":{"Status":"Done"}}`)
	}, Config{})

	if err := client.Update(context.Background(), "Milestones", "rec42", contractx.Fields{"Status": "Done", "Done": true}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"NOT_FOUND"}`)
	}, Config{})

	err := client.Update(context.Background(), "Milestones", "recGone", contractx.Fields{})
	if !errors.Is(err, contractx.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != "NOT_FOUND" {
		t.Fatalf("expected APIError NOT_FOUND, got %v", err)
	}
}

func TestAPIErrorObjectBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"Field \"Status\" cannot accept value"}}`)
	}, Config{})

	_, err := client.Create(context.Background(), "Agent Activity", contractx.Fields{"Status": 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Type != "INVALID_VALUE_FOR_COLUMN" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if apiErr.Retryable() {
		t.Fatal("422 must not be retryable")
	}
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	t.Parallel()

	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Config{BreakerMaxFailures: 2})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Query(ctx, "Logs", contractx.Filter{}); err == nil {
			t.Fatal("expected server error")
		}
	}

	_, err := client.Query(ctx, "Logs", contractx.Filter{})
	if err == nil {
		t.Fatal("expected circuit open error")
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("server hits = %d, want 2 (third call must fail fast)", got)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"type":"INVALID_PERMISSIONS","message":"no access"}}`)
	}, Config{BreakerMaxFailures: 1})

	for i := 0; i < 3; i++ {
		if _, err := client.Create(context.Background(), "Logs", contractx.Fields{}); err == nil {
			t.Fatal("expected forbidden error")
		}
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("server hits = %d, want 3", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{BaseID: "app"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base id")
	}
	if _, err := NewClient(Config{APIKey: "k", BaseID: "app", BaseURL: "::not a url"}); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

func TestConfigReadsOnlyPrefixedKeys(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "key-test")
	t.Setenv("AIRTABLE_BASE_ID", "appTest")
	t.Setenv("TIMEOUT", "1ms")
	t.Setenv("BASE_URL", "http://localhost:1")

	cfg, err := configx.Load[Config]("AIRTABLE", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "key-test" || cfg.BaseID != "appTest" {
		t.Fatalf("unexpected credentials: %+v", cfg)
	}
	if cfg.Timeout != 10*time.Second || cfg.BaseURL != "https://api.airtable.com/v0" {
		t.Fatalf("unprefixed variables leaked into config: %+v", cfg)
	}
}
