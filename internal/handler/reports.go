package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tudbom/counter-api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	ListAddonSales(ctx context.Context, arg database.ListAddonSalesParams) ([]database.AddonSale, error)
	SummarizeAddonSales(ctx context.Context, arg database.ListAddonSalesParams) ([]database.SummarizeAddonSalesRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports behind a staff role check.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/addon-sales", h.AddonSales)
}

// --- Response types ---

type addonSaleResponse struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	Category   string `json:"category"`
	AddonName  string `json:"addon_name"`
	Quantity   int32  `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalValue string `json:"total_value"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type addonSummaryResponse struct {
	Category   string `json:"category"`
	AddonName  string `json:"addon_name"`
	Quantity   int64  `json:"quantity"`
	TotalValue string `json:"total_value"`
}

type addonSalesResponse struct {
	Sales   []addonSaleResponse    `json:"sales"`
	Summary []addonSummaryResponse `json:"summary"`
}

// --- Handlers ---

// AddonSales lists add-on sales newest first with per-category totals.
// Query: start_date, end_date (YYYY-MM-DD, inclusive) and category, all optional.
func (h *ReportsHandler) AddonSales(w http.ResponseWriter, r *http.Request) {
	params, err := parseAddonSalesFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.store.ListAddonSales(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, "list addon sales", err)
		return
	}
	totals, err := h.store.SummarizeAddonSales(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, "summarize addon sales", err)
		return
	}

	resp := addonSalesResponse{
		Sales:   make([]addonSaleResponse, len(rows)),
		Summary: make([]addonSummaryResponse, len(totals)),
	}
	for i, row := range rows {
		resp.Sales[i] = addonSaleResponse{
			ID:         row.ID,
			OrderID:    row.OrderID,
			Category:   row.Category,
			AddonName:  row.AddonName,
			Quantity:   row.Quantity,
			UnitPrice:  numericString(row.UnitPrice),
			TotalValue: numericString(row.TotalValue),
			Date:       formatDate(row.SaleDate),
			Time:       formatTime(row.SaleTime),
		}
	}
	for i, t := range totals {
		resp.Summary[i] = addonSummaryResponse{
			Category:   t.Category,
			AddonName:  t.AddonName,
			Quantity:   t.Quantity,
			TotalValue: numericString(t.TotalValue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseAddonSalesFilter(r *http.Request) (database.ListAddonSalesParams, error) {
	var params database.ListAddonSalesParams
	q := r.URL.Query()

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return params, errors.New("invalid start_date format, use YYYY-MM-DD")
		}
		params.StartDate = pgtype.Date{Time: t, Valid: true}
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return params, errors.New("invalid end_date format, use YYYY-MM-DD")
		}
		params.EndDate = pgtype.Date{Time: t, Valid: true}
	}
	if params.StartDate.Valid && params.EndDate.Valid && params.EndDate.Time.Before(params.StartDate.Time) {
		return params, errors.New("end_date must not be before start_date")
	}
	if s := q.Get("category"); s != "" {
		params.Category = pgtype.Text{String: s, Valid: true}
	}
	return params, nil
}

func formatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// formatTime renders a TIME column as HH:MM:SS.
func formatTime(t pgtype.Time) string {
	if !t.Valid {
		return ""
	}
	secs := t.Microseconds / 1_000_000
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
