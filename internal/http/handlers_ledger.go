package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"wenxuji/internal/core"
	"wenxuji/internal/intake"
	applog "wenxuji/internal/log"
)

const maxListLimit = 500

// handleOverview returns the header balance, the expense breakdown and the
// totals and breakdown of one month (the current one unless year/month are
// given).
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	records := s.ledger.Snapshot()
	totals := core.ComputeTotals(records)
	shares := core.CategoryShares(core.ComputeCategoryBreakdown(records), totals.Expense)
	month := core.NewMonthOverview(records, params.Year, params.Month)

	NewJSONResponse().Payload(overviewView{
		Totals:    s.present.totals(totals),
		Breakdown: s.present.shares(shares),
		Month: monthView{
			Year:      month.Year,
			Month:     month.Month,
			Totals:    s.present.totals(month.Totals),
			Breakdown: s.present.shares(core.CategoryShares(month.ByCategory, month.Totals.Expense)),
		},
		Count: len(records),
	}).Write(w)
}

// handleListTransactions returns records newest first, optionally filtered
// by type and limited.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filteredSnapshot(w, r)
	if !ok {
		return
	}
	limit, err := ParseLimit(r.URL.Query(), maxListLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if limit > 0 {
		records = core.Recent(records, limit)
	}
	NewJSONResponse().Payload(map[string]any{
		"transactions": s.present.transactions(records),
	}).Write(w)
}

// handleGroupedTransactions returns the list view: records grouped by date,
// newest date first.
func (s *Server) handleGroupedTransactions(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filteredSnapshot(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Payload(map[string]any{
		"groups": s.present.groups(core.GroupByDate(records)),
	}).Write(w)
}

func (s *Server) filteredSnapshot(w http.ResponseWriter, r *http.Request) ([]core.Transaction, bool) {
	typ, err := ParseTypeFilter(r.URL.Query())
	if err != nil {
		BadRequestError("invalid type").Write(w)
		return nil, false
	}
	records := s.ledger.Snapshot()
	if typ == "" {
		return records, true
	}
	out := make([]core.Transaction, 0, len(records))
	for _, t := range records {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out, true
}

// handleCreateTransaction appends a manual entry or a confirmed draft. Both
// arrive as the same form fields.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			RequestTooLargeError("request body too large").Write(w)
			return
		}
		BadRequestError("invalid request body").Write(w)
		return
	}

	in := intake.ManualInput{
		Amount:      parser.Get("amount"),
		Type:        parser.Get("type"),
		Category:    parser.Get("category"),
		Description: parser.Get("description"),
		Date:        parser.Get("date"),
	}

	created, err := s.ledger.Create(r.Context(), in)
	if err != nil {
		if core.IsValidation(err) {
			ValidationErrorResponse(err).Write(w)
			return
		}
		requestLogger(r).LogError(r.Context(), "Failed to save transaction", err,
			applog.ComponentLedger, applog.OpAppend,
			applog.NewFields().WithTransaction("", in.Amount, in.Category, in.Type))
		InternalServerError("保存失败，请重试").Write(w)
		return
	}

	t := created.Transaction
	atomic.AddInt64(&s.appMetrics.transactionsAdded, 1)
	requestLogger(r).LogLedgerMutation(r.Context(), applog.OpAppend,
		t.ID, t.Amount.String(), t.CategoryID, t.Type.String(), len(s.ledger.Snapshot()))

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+t.ID).
		Payload(createdView{
			Transaction: s.present.transaction(t),
			Duplicates:  s.present.duplicates(created.Duplicates),
		}).
		Write(w)
}

// handleDeleteTransaction removes a record. Deleting an unknown id is not
// an error.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("missing id").Write(w)
		return
	}

	removed, err := s.ledger.Delete(r.Context(), id)
	if err != nil {
		requestLogger(r).LogError(r.Context(), "Failed to delete transaction", err,
			applog.ComponentLedger, applog.OpDelete,
			applog.NewFields().WithTransaction(id, "", "", ""))
		InternalServerError("删除失败，请重试").Write(w)
		return
	}
	if removed {
		atomic.AddInt64(&s.appMetrics.transactionsGone, 1)
		requestLogger(r).LogLedgerMutation(r.Context(), applog.OpDelete, id, "", "", "", len(s.ledger.Snapshot()))
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleCategories lists the registry in display order.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	typ, err := ParseTypeFilter(r.URL.Query())
	if err != nil {
		BadRequestError("invalid type").Write(w)
		return
	}
	NewJSONResponse().Payload(map[string]any{
		"categories": s.present.categories(s.ledger.Registry().List(typ)),
	}).Write(w)
}
