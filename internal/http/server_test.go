package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/services"
	"moneta/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	s, _ := newTestServerWithRepo(t)
	return s
}

func newTestServerWithRepo(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()

	logger := log.New(log.DefaultConfig())
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	recorder := services.NewTransactionService(repo, nil, logger)

	s := NewServer(":0", repo, recorder, time.Minute, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		_ = repo.Close()
	})
	return s, repo
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"type":        "expense",
		"amount":      "12.34",
		"occurred_at": "2024-03-10",
		"description": "lunch",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/transactions = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionResponse](t, rec)
	if created.ID == "" {
		t.Error("expected a generated transaction id")
	}
	if created.AmountCents != 1234 || created.Amount != "12.34" {
		t.Errorf("amount = %d / %q, want 1234 / 12.34", created.AmountCents, created.Amount)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/transactions = %d", rec.Code)
	}
	list := decodeBody[struct {
		Transactions []transactionResponse `json:"transactions"`
		Count        int                   `json:"count"`
	}](t, rec)
	if list.Count != 1 || len(list.Transactions) != 1 {
		t.Fatalf("count = %d, want 1", list.Count)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET transaction by id = %d, want 200", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE transaction = %d, want 204", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/transactions/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted transaction = %d, want 404", rec.Code)
	}
}

func TestCreateTransaction_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			"bad amount",
			map[string]any{"type": "expense", "amount": "abc", "description": "x"},
			http.StatusUnprocessableEntity,
		},
		{
			"bad type",
			map[string]any{"type": "transfer", "amount": "1.00", "description": "x"},
			http.StatusUnprocessableEntity,
		},
		{
			"missing description",
			map[string]any{"type": "expense", "amount": "1.00"},
			http.StatusUnprocessableEntity,
		},
		{
			"unknown field",
			map[string]any{"type": "expense", "amount": "1.00", "description": "x", "bogus": 1},
			http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRuleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/rules", map[string]any{
		"type":        "expense",
		"amount":      "900.00",
		"frequency":   "monthly",
		"due_day":     1,
		"start_date":  "2024-01-01",
		"description": "rent",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/rules = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[ruleResponse](t, rec)
	if !created.Active {
		t.Error("fresh open-ended rule should be active")
	}
	if created.NextDueDate == "" {
		t.Error("expected a next due date")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/rules", nil)
	list := decodeBody[struct {
		Rules []ruleResponse `json:"rules"`
		Count int            `json:"count"`
	}](t, rec)
	if list.Count != 1 {
		t.Fatalf("rule count = %d, want 1", list.Count)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/rules/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE rule = %d, want 204", rec.Code)
	}

	// Weekly rule missing weekday is fine (Sunday); monthly without
	// due_day is rejected.
	rec = doJSON(t, s, http.MethodPost, "/api/rules", map[string]any{
		"type":        "expense",
		"amount":      "10.00",
		"frequency":   "monthly",
		"start_date":  "2024-01-01",
		"description": "no due day",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("monthly rule without due_day = %d, want 422", rec.Code)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	s := newTestServer(t)

	seed := []map[string]any{
		{"type": "income", "amount": "1000.00", "occurred_at": "2024-01-10", "description": "salary"},
		{"type": "expense", "amount": "400.00", "occurred_at": "2024-01-15", "description": "rent"},
		{"type": "income", "amount": "1000.00", "occurred_at": "2024-02-10", "description": "salary"},
		{"type": "expense", "amount": "700.00", "occurred_at": "2024-02-15", "description": "rent+bills"},
	}
	for _, body := range seed {
		if rec := doJSON(t, s, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed transaction failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/api/dashboard/periods?granularity=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET periods = %d, body %s", rec.Code, rec.Body.String())
	}
	periods := decodeBody[struct {
		Periods []periodBucketResponse `json:"periods"`
	}](t, rec)
	if len(periods.Periods) != 2 {
		t.Fatalf("got %d period buckets, want 2", len(periods.Periods))
	}
	jan := periods.Periods[0]
	if jan.Period != "2024-01" || jan.IncomeCents != 100000 || jan.ExpenseCents != 40000 || jan.NetCents != 60000 {
		t.Errorf("january bucket = %+v, want income 100000 expense 40000 net 60000", jan)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard/trend?granularity=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET trend = %d", rec.Code)
	}
	trend := decodeBody[trendResponse](t, rec)
	if len(trend.CumulativeCents) != 2 || trend.CumulativeCents[0] != 60000 || trend.CumulativeCents[1] != 90000 {
		t.Errorf("cumulative = %v, want [60000 90000]", trend.CumulativeCents)
	}
	if trend.NetChangeCents != 30000 {
		t.Errorf("net change = %d, want 30000", trend.NetChangeCents)
	}
	if trend.NetChangePercent != 50 {
		t.Errorf("net change percent = %v, want 50", trend.NetChangePercent)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET categories = %d", rec.Code)
	}
	cats := decodeBody[struct {
		Categories []categorySummaryResponse `json:"categories"`
	}](t, rec)
	if len(cats.Categories) != 1 {
		t.Fatalf("got %d category rows, want 1 (uncategorized)", len(cats.Categories))
	}
	if cats.Categories[0].CategoryID != "uncategorized" || cats.Categories[0].SharePercent != 100 {
		t.Errorf("category row = %+v, want uncategorized at 100%%", cats.Categories[0])
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard/periods?granularity=hourly", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid granularity = %d, want 400", rec.Code)
	}
}

func TestDashboardPeriods_ReportsSkippedRecords(t *testing.T) {
	s, repo := newTestServerWithRepo(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"type": "income", "amount": "100.00", "occurred_at": "2024-01-10", "description": "pay",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed transaction failed: %d", rec.Code)
	}

	// A row with no occurrence date can only enter below the service
	// layer; the aggregator must skip it and say so.
	bad := core.Transaction{
		ID:          "bad-date",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 500},
		Description: "corrupt row",
	}
	if err := repo.CreateTransaction(context.Background(), bad, ""); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard/periods?granularity=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET periods = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[struct {
		Periods []periodBucketResponse `json:"periods"`
		Skipped int                    `json:"skipped_records"`
	}](t, rec)
	if got.Skipped != 1 {
		t.Errorf("skipped_records = %d, want 1", got.Skipped)
	}
	if len(got.Periods) != 1 || got.Periods[0].IncomeCents != 10000 {
		t.Errorf("periods = %+v, want one january bucket with income 10000", got.Periods)
	}
}

func TestDashboardCacheInvalidation(t *testing.T) {
	s := newTestServer(t)

	post := func(amount, date string) {
		t.Helper()
		rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
			"type": "income", "amount": amount, "occurred_at": date, "description": "pay",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d", rec.Code)
		}
	}

	post("100.00", "2024-01-10")

	rec := doJSON(t, s, http.MethodGet, "/api/dashboard/periods?granularity=month", nil)
	first := decodeBody[struct {
		Periods []periodBucketResponse `json:"periods"`
	}](t, rec)
	if len(first.Periods) != 1 {
		t.Fatalf("got %d buckets, want 1", len(first.Periods))
	}

	// A write must drop the cached aggregate.
	post("50.00", "2024-01-20")

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard/periods?granularity=month", nil)
	second := decodeBody[struct {
		Periods []periodBucketResponse `json:"periods"`
	}](t, rec)
	if second.Periods[0].IncomeCents != 15000 {
		t.Errorf("income after second write = %d, want 15000", second.Periods[0].IncomeCents)
	}
}

func TestGoalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/goals", map[string]any{
		"name":     "vacation",
		"target":   "1000.00",
		"deadline": "2025-06-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/goals = %d, body %s", rec.Code, rec.Body.String())
	}
	goal := decodeBody[goalResponse](t, rec)
	if goal.TargetCents != 100000 || goal.Progress != 0 {
		t.Errorf("goal = %+v, want target 100000 progress 0", goal)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/goals/"+goal.ID+"/contributions", map[string]any{
		"amount": "250.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST contribution = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[goalResponse](t, rec)
	if updated.SavedCents != 25000 || updated.Progress != 0.25 {
		t.Errorf("after contribution = %+v, want saved 25000 progress 0.25", updated)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/goals/missing/contributions", map[string]any{
		"amount": "1.00",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("contribution to missing goal = %d, want 404", rec.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/categories", map[string]any{
		"name":  "Groceries",
		"color": "#4caf50",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/categories = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/categories", map[string]any{"name": "  "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank category name = %d, want 422", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/categories", nil)
	list := decodeBody[struct {
		Categories []categoryResponse `json:"categories"`
		Count      int                `json:"count"`
	}](t, rec)
	if list.Count != 1 || list.Categories[0].Name != "Groceries" {
		t.Errorf("categories = %+v, want just Groceries", list.Categories)
	}
}
