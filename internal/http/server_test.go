package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/auth"
	"bilancio/internal/services"
	sheetsmem "bilancio/internal/sheets/memory"
	"bilancio/internal/storage/memory"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	srv    *Server
	budget *services.BudgetService
	owner  string
	token  string
}

func newTestServer(t *testing.T, cfg Config, opts ...services.Option) *testServer {
	t.Helper()
	opts = append([]services.Option{services.WithClock(func() time.Time { return fixedNow }, time.UTC)}, opts...)
	svc := services.NewBudgetService(memory.NewStore(), opts...)
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.Config{Output: io.Discard})
	}
	srv := NewServer(cfg, svc)
	t.Cleanup(srv.limiter.Stop)
	return &testServer{t: t, srv: srv, budget: svc, owner: "alice"}
}

func (ts *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.RemoteAddr = "203.0.113.10:4000"
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	} else if ts.owner != "" {
		req.Header.Set(auth.HeaderOwnerID, ts.owner)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

var rentRule = map[string]any{
	"type":         "expense",
	"category":     "Casa",
	"description":  "Affitto",
	"amount":       "800.00",
	"frequency":    "monthly",
	"dom":          1,
	"start_anchor": "2026-01-01",
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.owner = ""

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(http.MethodGet, path, nil)
		expectStatus(t, rr, http.StatusOK)
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}
}

func TestAPIRequiresOwner(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.owner = ""

	rr := ts.do(http.MethodGet, "/api/entries", nil)
	expectStatus(t, rr, http.StatusUnauthorized)
	if body := decode[errorResponse](t, rr); body.Error == "" || body.RequestID == "" {
		t.Errorf("error body = %+v", body)
	}
}

func TestJWTOwner(t *testing.T) {
	const secret = "0123456789abcdef0123"
	ts := newTestServer(t, Config{JWTSecret: secret})

	rr := ts.do(http.MethodGet, "/api/entries", nil)
	expectStatus(t, rr, http.StatusUnauthorized)

	token, err := auth.New(secret, "").IssueToken("alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	ts.token = token
	rr = ts.do(http.MethodPost, "/api/entries", map[string]any{
		"type": "expense", "description": "Spesa", "amount": 12.5, "due_date": "2026-03-10",
	})
	expectStatus(t, rr, http.StatusCreated)

	entries, _ := ts.budget.ListEntries(context.Background(), "alice")
	if len(entries) != 1 {
		t.Errorf("entries stored for token subject = %d, want 1", len(entries))
	}
}

func TestEntryLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(http.MethodGet, "/api/entries", nil)
	expectStatus(t, rr, http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty list = %s", rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/api/entries", map[string]any{
		"type": "Expense", "category": "Casa", "description": "  Bolletta\x07 ", "amount": "45.50", "due_date": "2026-03-20",
	})
	expectStatus(t, rr, http.StatusCreated)
	created := decode[core.OneTimeEntry](t, rr)
	if created.ID == "" || created.Description != "Bolletta" || created.Type != core.Expense {
		t.Fatalf("created = %+v", created)
	}
	if got := rr.Header().Get("Location"); got != "/api/entries/"+created.ID {
		t.Errorf("Location = %q", got)
	}

	rr = ts.do(http.MethodPut, "/api/entries/"+created.ID, map[string]any{
		"type": "expense", "description": "Bolletta luce", "amount": "45.50", "due_date": "2026-03-20", "paid_on": "2026-03-18",
	})
	expectStatus(t, rr, http.StatusOK)
	if updated := decode[core.OneTimeEntry](t, rr); !updated.IsPaid() {
		t.Errorf("updated = %+v", updated)
	}

	rr = ts.do(http.MethodGet, "/api/entries/"+created.ID, nil)
	expectStatus(t, rr, http.StatusOK)

	ts.owner = "bob"
	expectStatus(t, ts.do(http.MethodGet, "/api/entries/"+created.ID, nil), http.StatusNotFound)
	ts.owner = "alice"

	expectStatus(t, ts.do(http.MethodDelete, "/api/entries/"+created.ID, nil), http.StatusNoContent)
	expectStatus(t, ts.do(http.MethodGet, "/api/entries/"+created.ID, nil), http.StatusNotFound)
	expectStatus(t, ts.do(http.MethodDelete, "/api/entries/"+created.ID, nil), http.StatusNotFound)
}

func TestEntryRejections(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"unknown field", `{"type":"expense","bogus":1}`, http.StatusBadRequest},
		{"two objects", `{"type":"expense"}{}`, http.StatusBadRequest},
		{"bad date", map[string]any{"type": "expense", "description": "x", "amount": "1", "due_date": "2026-02-30"}, http.StatusBadRequest},
		{"zero amount", map[string]any{"type": "expense", "description": "x", "amount": "0", "due_date": "2026-03-01"}, http.StatusUnprocessableEntity},
		{"bad type", map[string]any{"type": "gift", "description": "x", "amount": "1", "due_date": "2026-03-01"}, http.StatusUnprocessableEntity},
		{"empty description", map[string]any{"type": "income", "description": " ", "amount": "1", "due_date": "2026-03-01"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, ts.do(http.MethodPost, "/api/entries", tt.body), tt.want)
		})
	}
}

func TestRuleOccurrences(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(http.MethodPost, "/api/rules", rentRule)
	expectStatus(t, rr, http.StatusCreated)
	rule := decode[core.Rule](t, rr)
	if !rule.Active || rule.Interval != 1 {
		t.Fatalf("rule = %+v", rule)
	}
	base := "/api/rules/" + rule.ID + "/occurrences/"

	expectStatus(t, ts.do(http.MethodPost, base+"2026-03-01/paid", nil), http.StatusOK)

	rr = ts.do(http.MethodGet, "/api/snapshot?month=2026-03", nil)
	expectStatus(t, rr, http.StatusOK)
	snap := decode[core.Snapshot](t, rr)
	if len(snap.Rows) != 1 || !snap.Rows[0].IsPaid || !snap.Rows[0].Date.Equal(core.NewDate(2026, 3, 1)) {
		t.Fatalf("rows = %+v", snap.Rows)
	}

	rr = ts.do(http.MethodPost, base+"2026-04-01/postpone", map[string]any{"new_date": "2026-04-10"})
	expectStatus(t, rr, http.StatusOK)
	if o := decode[core.Override](t, rr); o.Type != core.OverridePostponed {
		t.Errorf("override = %+v", o)
	}

	expectStatus(t, ts.do(http.MethodPost, base+"2026-05-01/skip", nil), http.StatusOK)

	tests := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"postpone needs date", base + "2026-06-01/postpone", nil, http.StatusUnprocessableEntity},
		{"not scheduled", base + "2026-06-02/skip", nil, http.StatusUnprocessableEntity},
		{"bad date", base + "2026-13-01/skip", nil, http.StatusBadRequest},
		{"unknown action", base + "2026-06-01/forget", nil, http.StatusNotFound},
		{"unknown rule", "/api/rules/nope/occurrences/2026-06-01/skip", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, ts.do(http.MethodPost, tt.target, tt.body), tt.want)
		})
	}

	rr = ts.do(http.MethodGet, "/api/overrides", nil)
	expectStatus(t, rr, http.StatusOK)
	overrides := decode[[]core.Override](t, rr)
	if len(overrides) != 3 {
		t.Fatalf("overrides = %d, want 3", len(overrides))
	}
	expectStatus(t, ts.do(http.MethodDelete, "/api/overrides/"+overrides[0].ID, nil), http.StatusNoContent)
}

func TestPayingPostponedOccurrence(t *testing.T) {
	ts := newTestServer(t, Config{})
	rr := ts.do(http.MethodPost, "/api/rules", rentRule)
	expectStatus(t, rr, http.StatusCreated)
	base := "/api/rules/" + decode[core.Rule](t, rr).ID + "/occurrences/2026-03-01/"

	rr = ts.do(http.MethodPost, base+"postpone", map[string]any{"new_date": "2026-04-03"})
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get(headerReplacedOverride); got != "" {
		t.Errorf("first decision: %s = %q, want empty", headerReplacedOverride, got)
	}

	rr = ts.do(http.MethodPost, base+"paid", map[string]any{"paid_on": "2026-03-20"})
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get(headerReplacedOverride); got != string(core.OverridePostponed) {
		t.Errorf("%s = %q, want postponed", headerReplacedOverride, got)
	}

	rr = ts.do(http.MethodGet, "/api/snapshot?month=2026-03", nil)
	expectStatus(t, rr, http.StatusOK)
	snap := decode[core.Snapshot](t, rr)
	if len(snap.Rows) != 1 || !snap.Rows[0].IsPaid || !snap.Rows[0].EffectiveDate.Equal(core.NewDate(2026, 3, 1)) {
		t.Fatalf("paid row should be back on its scheduled date: %+v", snap.Rows)
	}

	rr = ts.do(http.MethodPost, base+"paid", map[string]any{"paid_on": "2026-03-21"})
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get(headerReplacedOverride); got != "" {
		t.Errorf("same decision again: %s = %q, want empty", headerReplacedOverride, got)
	}
}

func TestRuleActivation(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(http.MethodPost, "/api/rules", rentRule)
	expectStatus(t, rr, http.StatusCreated)
	id := decode[core.Rule](t, rr).ID

	rr = ts.do(http.MethodPost, "/api/rules/"+id+"/deactivate", nil)
	expectStatus(t, rr, http.StatusOK)
	if decode[core.Rule](t, rr).Active {
		t.Fatal("rule still active")
	}

	update := map[string]any{}
	for k, v := range rentRule {
		update[k] = v
	}
	update["amount"] = "850"
	rr = ts.do(http.MethodPut, "/api/rules/"+id, update)
	expectStatus(t, rr, http.StatusOK)
	if r := decode[core.Rule](t, rr); r.Active || r.Amount.String() != "850" {
		t.Errorf("update without active flag = %+v", r)
	}

	rr = ts.do(http.MethodGet, "/api/snapshot?month=2026-03", nil)
	if snap := decode[core.Snapshot](t, rr); len(snap.Rows) != 0 {
		t.Errorf("inactive rule produced rows: %+v", snap.Rows)
	}

	rr = ts.do(http.MethodPost, "/api/rules/"+id+"/activate", nil)
	expectStatus(t, rr, http.StatusOK)
	expectStatus(t, ts.do(http.MethodDelete, "/api/rules/"+id, nil), http.StatusNoContent)
	expectStatus(t, ts.do(http.MethodGet, "/api/rules/"+id, nil), http.StatusNotFound)
}

func TestSnapshotQueries(t *testing.T) {
	ts := newTestServer(t, Config{})
	expectStatus(t, ts.do(http.MethodPost, "/api/rules", rentRule), http.StatusCreated)

	tests := []struct {
		name   string
		target string
		want   int
		rows   int
	}{
		{"default month", "/api/snapshot", http.StatusOK, 1},
		{"month", "/api/snapshot?month=2026-02", http.StatusOK, 1},
		{"month range", "/api/snapshot?start=2026-01-01&end=2026-03-31", http.StatusOK, 3},
		{"bad month", "/api/snapshot?month=2026-3x", http.StatusBadRequest, 0},
		{"start only", "/api/snapshot?start=2026-01-01", http.StatusBadRequest, 0},
		{"mixed", "/api/snapshot?month=2026-03&start=2026-01-01&end=2026-02-01", http.StatusBadRequest, 0},
		{"reversed", "/api/snapshot?start=2026-03-01&end=2026-01-01", http.StatusBadRequest, 0},
		{"unpaid default", "/api/unpaid", http.StatusOK, 1},
		{"unpaid range", "/api/unpaid?start=2026-01-01&end=2026-03-01", http.StatusOK, 2},
		{"unpaid empty", "/api/unpaid?start=2026-03-01&end=2026-03-01", http.StatusBadRequest, 0},
		{"month out of range", "/api/snapshot?month=9999-12", http.StatusBadRequest, 0},
		{"range out of range", "/api/snapshot?start=1000-01-01&end=2026-03-01", http.StatusBadRequest, 0},
		{"unpaid out of range", "/api/unpaid?start=1000-01-01&end=9999-12-31", http.StatusBadRequest, 0},
		{"trailing garbage in date", "/api/unpaid?start=2026-01-01garbage&end=2026-03-01", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(http.MethodGet, tt.target, nil)
			expectStatus(t, rr, tt.want)
			if tt.want != http.StatusOK {
				return
			}
			if snap := decode[core.Snapshot](t, rr); len(snap.Rows) != tt.rows {
				t.Errorf("rows = %d, want %d", len(snap.Rows), tt.rows)
			}
		})
	}
}

func TestExportSnapshot(t *testing.T) {
	exporter := sheetsmem.New()
	ts := newTestServer(t, Config{}, services.WithExporter(exporter))
	expectStatus(t, ts.do(http.MethodPost, "/api/rules", rentRule), http.StatusCreated)

	rr := ts.do(http.MethodPost, "/api/snapshot/export?month=2026-03", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[exportResponse](t, rr); got.Ref != "mem:alice 2026-03" {
		t.Errorf("export = %+v", got)
	}
	if _, ok := exporter.Get("alice 2026-03"); !ok {
		t.Error("export not stored")
	}

	plain := newTestServer(t, Config{})
	expectStatus(t, plain.do(http.MethodPost, "/api/snapshot/export", nil), http.StatusServiceUnavailable)
}

func TestOwnerProfile(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(http.MethodGet, "/api/owner", nil)
	expectStatus(t, rr, http.StatusOK)
	if o := decode[core.Owner](t, rr); o.ID != "alice" {
		t.Errorf("owner = %+v", o)
	}

	expectStatus(t, ts.do(http.MethodPut, "/api/owner", map[string]any{"email": "not an address"}), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(http.MethodPut, "/api/owner", map[string]any{"email": "alice@example.com", "display_name": "Alice"}), http.StatusOK)

	rr = ts.do(http.MethodGet, "/api/owner", nil)
	if o := decode[core.Owner](t, rr); o.Email != "alice@example.com" || o.DisplayName != "Alice" {
		t.Errorf("owner = %+v", o)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	ts := newTestServer(t, Config{RateLimitPerMinute: 1})
	entry := map[string]any{"type": "expense", "description": "x", "amount": "1", "due_date": "2026-03-01"}

	expectStatus(t, ts.do(http.MethodPost, "/api/entries", entry), http.StatusCreated)
	expectStatus(t, ts.do(http.MethodGet, "/api/entries", nil), http.StatusOK)
	expectStatus(t, ts.do(http.MethodPost, "/api/entries", entry), http.StatusTooManyRequests)

	ts.owner = "bob"
	expectStatus(t, ts.do(http.MethodPost, "/api/entries", entry), http.StatusCreated)
}

func TestUnknownRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})
	expectStatus(t, ts.do(http.MethodGet, "/nowhere", nil), http.StatusNotFound)
	expectStatus(t, ts.do(http.MethodPatch, "/api/entries", nil), http.StatusMethodNotAllowed)
}
