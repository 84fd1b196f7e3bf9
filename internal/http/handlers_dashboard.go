package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"moneta/internal/analytics"
	"moneta/internal/log"
)

type periodBucketResponse struct {
	Period       string `json:"period"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	NetCents     int64  `json:"net_cents"`
	Income       string `json:"income"`
	Expense      string `json:"expense"`
	Net          string `json:"net"`
}

type categorySummaryResponse struct {
	CategoryID   string  `json:"category_id"`
	Label        string  `json:"label"`
	Color        string  `json:"color"`
	TotalCents   int64   `json:"total_cents"`
	Total        string  `json:"total"`
	SharePercent float64 `json:"share_percent"`
}

type trendResponse struct {
	Periods          []string `json:"periods"`
	BalanceCents     []int64  `json:"balance_cents"`
	CumulativeCents  []int64  `json:"cumulative_cents"`
	AverageCents     int64    `json:"average_cents"`
	NetChangeCents   int64    `json:"net_change_cents"`
	NetChangePercent float64  `json:"net_change_percent"`
}

func parseGranularity(r *http.Request) (analytics.Granularity, error) {
	v := strings.TrimSpace(r.URL.Query().Get("granularity"))
	switch v {
	case "", "month":
		return analytics.ByMonth, nil
	case "day":
		return analytics.ByDay, nil
	default:
		return "", fmt.Errorf("invalid granularity %q (want day or month)", v)
	}
}

func dashboardKey(kind string, g analytics.Granularity, from, to time.Time, extra string) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", kind, g, from.Unix(), to.Unix(), extra)
}

func (s *Server) loadBuckets(ctx context.Context, g analytics.Granularity, from, to time.Time) ([]analytics.PeriodBucket, int, error) {
	skipped := 0
	buckets, err := s.periodLoader.Load(ctx, dashboardKey("periods", g, from, to, ""),
		func(ctx context.Context) ([]analytics.PeriodBucket, error) {
			txs, err := s.store.ListTransactions(ctx, from, to)
			if err != nil {
				return nil, err
			}
			buckets, bad, err := analytics.GroupByPeriod(txs, g)
			if err != nil {
				return nil, err
			}
			skipped = len(bad)
			for _, rec := range bad {
				s.logger.WarnContext(ctx, "skipped malformed record",
					log.FieldTransactionID, rec.ID, log.FieldError, rec.Err)
			}
			return buckets, nil
		})
	return buckets, skipped, err
}

func (s *Server) handleDashboardPeriods(w http.ResponseWriter, r *http.Request) {
	granularity, err := parseGranularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buckets, skipped, err := s.loadBuckets(r.Context(), granularity, from, to)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to build period summary", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to build period summary")
		return
	}
	if skipped > 0 {
		s.logger.WarnContext(r.Context(), "period summary skipped malformed records",
			log.FieldGranularity, string(granularity), log.FieldSkipped, skipped)
	}

	out := make([]periodBucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, periodBucketResponse{
			Period:       b.PeriodKey,
			IncomeCents:  b.Income.Cents,
			ExpenseCents: b.Expense.Cents,
			NetCents:     b.Net.Cents,
			Income:       b.Income.String(),
			Expense:      b.Expense.String(),
			Net:          b.Net.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"granularity":     string(granularity),
		"periods":         out,
		"skipped_records": skipped,
	})
}

func (s *Server) handleDashboardCategories(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topN, err := parsePositiveInt(r, "top", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	skipped := 0
	key := dashboardKey("categories", "", from, to, "")
	summaries, err := s.catLoader.Load(r.Context(), key,
		func(ctx context.Context) ([]analytics.CategorySummary, error) {
			txs, err := s.store.ListTransactions(ctx, from, to)
			if err != nil {
				return nil, err
			}
			catalog, err := s.store.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			summaries, bad := analytics.GroupByCategory(txs, catalog)
			skipped = len(bad)
			for _, rec := range bad {
				s.logger.WarnContext(ctx, "skipped malformed record",
					log.FieldTransactionID, rec.ID, log.FieldError, rec.Err)
			}
			return summaries, nil
		})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to build category summary", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to build category summary")
		return
	}
	if skipped > 0 {
		s.logger.WarnContext(r.Context(), "category summary skipped malformed records",
			log.FieldSkipped, skipped)
	}

	if topN > 0 {
		summaries = analytics.TopN(summaries, topN)
	}

	out := make([]categorySummaryResponse, 0, len(summaries))
	for _, c := range summaries {
		out = append(out, categorySummaryResponse{
			CategoryID:   c.CategoryID,
			Label:        c.Label,
			Color:        c.Color,
			TotalCents:   c.Total.Cents,
			Total:        c.Total.String(),
			SharePercent: c.SharePercent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":      out,
		"skipped_records": skipped,
	})
}

func (s *Server) handleDashboardTrend(w http.ResponseWriter, r *http.Request) {
	granularity, err := parseGranularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := dashboardKey("trend", granularity, from, to, "")
	series, err := s.trendLoader.Load(r.Context(), key,
		func(ctx context.Context) (analytics.TrendSeries, error) {
			buckets, _, err := s.loadBuckets(ctx, granularity, from, to)
			if err != nil {
				return analytics.TrendSeries{}, err
			}
			return analytics.BuildTrend(buckets)
		})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to build trend", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to build trend")
		return
	}

	resp := trendResponse{
		Periods:          series.PeriodKeys,
		AverageCents:     series.AverageBalance.Cents,
		NetChangeCents:   series.NetChange.Cents,
		NetChangePercent: series.NetChangePercent,
	}
	for _, b := range series.Balances {
		resp.BalanceCents = append(resp.BalanceCents, b.Cents)
	}
	for _, c := range series.Cumulative {
		resp.CumulativeCents = append(resp.CumulativeCents, c.Cents)
	}
	writeJSON(w, http.StatusOK, resp)
}
