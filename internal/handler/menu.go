package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// MenuStore defines the catalog reads behind the kiosk menu.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	ListProducts(ctx context.Context) ([]database.Product, error)
	ListAddons(ctx context.Context) ([]database.Addon, error)
}

// MenuHandler serves the read-only menu.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers GET /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Get)
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type menuItemResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      string  `json:"price"`
	Image      *string `json:"image,omitempty"`
	CategoryID *int64  `json:"category_id"`
	Category   string  `json:"category"`
	Stock      int32   `json:"stock"`
}

type menuResponse struct {
	Categories []categoryResponse `json:"categories"`
	Products   []menuItemResponse `json:"products"`
	Addons     []menuItemResponse `json:"addons"`
}

// Get handles GET /menu.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		writeServiceError(w, r, "list categories", err)
		return
	}
	products, err := h.store.ListProducts(ctx)
	if err != nil {
		writeServiceError(w, r, "list products", err)
		return
	}
	addons, err := h.store.ListAddons(ctx)
	if err != nil {
		writeServiceError(w, r, "list addons", err)
		return
	}

	names := make(map[int64]string, len(categories))
	resp := menuResponse{
		Categories: make([]categoryResponse, len(categories)),
		Products:   make([]menuItemResponse, len(products)),
		Addons:     make([]menuItemResponse, len(addons)),
	}
	for i, c := range categories {
		names[c.ID] = c.Name
		resp.Categories[i] = categoryResponse{ID: c.ID, Name: c.Name}
	}
	for i, p := range products {
		item := menuItem(p.ID, p.Name, p.Price, p.CategoryID, p.Stock, names)
		if p.Image.Valid {
			image := p.Image.String
			item.Image = &image
		}
		resp.Products[i] = item
	}
	for i, a := range addons {
		resp.Addons[i] = menuItem(a.ID, a.Name, a.Price, a.CategoryID, a.Stock, names)
	}

	writeJSON(w, http.StatusOK, resp)
}

func menuItem(id int64, name string, price pgtype.Numeric, categoryID pgtype.Int8, stock int32, categories map[int64]string) menuItemResponse {
	item := menuItemResponse{
		ID:       id,
		Name:     name,
		Price:    numericString(price),
		Category: enum.CategoryUncategorized,
		Stock:    stock,
	}
	if categoryID.Valid {
		cid := categoryID.Int64
		item.CategoryID = &cid
		if n, ok := categories[cid]; ok {
			item.Category = n
		}
	}
	return item
}

// numericString renders a NUMERIC money value with two decimals.
func numericString(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(n.Int, n.Exp).StringFixed(2)
}
