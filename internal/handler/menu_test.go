package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/handler"
)

type mockMenuStore struct {
	categories []database.Category
	products   []database.Product
	addons     []database.Addon
	err        error
}

func (m *mockMenuStore) ListCategories(ctx context.Context) ([]database.Category, error) {
	return m.categories, m.err
}

func (m *mockMenuStore) ListProducts(ctx context.Context) ([]database.Product, error) {
	return m.products, nil
}

func (m *mockMenuStore) ListAddons(ctx context.Context) ([]database.Addon, error) {
	return m.addons, nil
}

func setupMenuRouter(store *mockMenuStore) *chi.Mux {
	r := chi.NewRouter()
	handler.NewMenuHandler(store).RegisterRoutes(r)
	return r
}

func TestMenuGet(t *testing.T) {
	store := &mockMenuStore{
		categories: []database.Category{{ID: 1, Name: "Sobremesas"}},
		products: []database.Product{
			{ID: 7, Name: "Sundae", Price: testNumeric("10"), CategoryID: pgtype.Int8{Int64: 1, Valid: true}, Stock: 5,
				Image: pgtype.Text{String: "/img/sundae.png", Valid: true}},
			{ID: 8, Name: "Água", Price: testNumeric("3.5"), Stock: 999},
		},
		addons: []database.Addon{
			{ID: 20, Name: "Nuts", Price: testNumeric("1.50"), CategoryID: pgtype.Int8{Int64: 1, Valid: true}, Stock: 10},
		},
	}
	rr := doRequest(t, setupMenuRouter(store), "GET", "/menu", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)

	products := resp["products"].([]interface{})
	if len(products) != 2 {
		t.Fatalf("products: got %d, want 2", len(products))
	}
	sundae := products[0].(map[string]interface{})
	if sundae["price"] != "10.00" || sundae["category"] != "Sobremesas" || sundae["image"] != "/img/sundae.png" {
		t.Errorf("sundae: got %v", sundae)
	}
	if sundae["stock"] != json.Number("5") {
		t.Errorf("stock: got %v", sundae["stock"])
	}
	water := products[1].(map[string]interface{})
	if water["category"] != "Outros" || water["category_id"] != nil {
		t.Errorf("uncategorised product: got %v", water)
	}
	if _, ok := water["image"]; ok {
		t.Error("image must be omitted when unset")
	}

	addons := resp["addons"].([]interface{})
	if addons[0].(map[string]interface{})["price"] != "1.50" {
		t.Errorf("addons: got %v", addons)
	}
	if cats := resp["categories"].([]interface{}); len(cats) != 1 {
		t.Errorf("categories: got %v", cats)
	}
}

func TestMenuGet_StoreError(t *testing.T) {
	rr := doRequest(t, setupMenuRouter(&mockMenuStore{err: errors.New("connection refused")}), "GET", "/menu", nil, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if resp := decodeObject(t, rr); resp["error"] != "internal server error" {
		t.Errorf("error: got %v", resp["error"])
	}
}
