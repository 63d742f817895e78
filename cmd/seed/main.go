package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/auth"
	"github.com/tudbom/counter-api/internal/config"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
	"github.com/tudbom/counter-api/migrations"
)

type seedItem struct {
	name     string
	price    string
	category string
	stock    int32
}

var products = []seedItem{
	{"Sundae", "10.00", "Sobremesas", 5},
	{"Casquinha", "5.25", "Sobremesas", 40},
	{"Milkshake", "12.50", "Bebidas", 20},
	{"Água", "3.00", "", 999},
}

var addons = []seedItem{
	{"Nuts", "1.50", "Sobremesas", 10},
	{"Sprinkles", "0.75", "Sobremesas", 30},
	{"Calda de chocolate", "2.00", "Sobremesas", 25},
	{"Chantilly", "1.00", "Bebidas", 15},
}

func main() {
	role := flag.String("role", enum.UserRoleStaff, "Role of the printed token (STAFF or ADMIN)")
	ttl := flag.Duration("ttl", 12*time.Hour, "Lifetime of the printed token")
	skipCatalog := flag.Bool("token-only", false, "Only print a token, do not touch the catalog")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	cfg := config.Load()

	if !*skipCatalog {
		url := cfg.DatabaseURL
		if cfg.SplitStores() {
			url = cfg.CatalogDatabaseURL
		}
		if err := seedCatalog(context.Background(), url); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed catalog")
		}
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), strings.ToUpper(*role), *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token")
	}
	fmt.Println(token)
}

func seedCatalog(ctx context.Context, url string) error {
	if err := database.Migrate(url, migrations.Catalog, "catalog", "schema_migrations_catalog"); err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, database.PoolConfig{URL: url, MaxConns: 2, AcquireTimeout: 10 * time.Second})
	if err != nil {
		return err
	}
	defer pool.Close()

	// Seed in a transaction: the whole menu or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)
	categories := map[string]pgtype.Int8{}
	categoryID := func(name string) (pgtype.Int8, error) {
		if name == "" {
			return pgtype.Int8{}, nil
		}
		if id, ok := categories[name]; ok {
			return id, nil
		}
		c, err := q.CreateCategory(ctx, name)
		if err != nil {
			return pgtype.Int8{}, fmt.Errorf("create category %s: %w", name, err)
		}
		categories[name] = pgtype.Int8{Int64: c.ID, Valid: true}
		return categories[name], nil
	}

	for _, p := range products {
		_, err := q.GetProductForOrderByName(ctx, p.name)
		if err == nil {
			log.Info().Str("product", p.name).Msg("Already seeded, skipping")
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lookup product %s: %w", p.name, err)
		}
		cid, err := categoryID(p.category)
		if err != nil {
			return err
		}
		if _, err := q.CreateProduct(ctx, database.CreateProductParams{
			Name:       p.name,
			Price:      numeric(p.price),
			CategoryID: cid,
			Stock:      p.stock,
		}); err != nil {
			return fmt.Errorf("create product %s: %w", p.name, err)
		}
		log.Info().Str("product", p.name).Int32("stock", p.stock).Msg("Seeded product")
	}

	existing := map[string]bool{}
	names := make([]string, len(addons))
	for i, a := range addons {
		names[i] = strings.ToLower(a.name)
	}
	found, err := q.ListAddonsByNames(ctx, names)
	if err != nil {
		return fmt.Errorf("lookup addons: %w", err)
	}
	for _, a := range found {
		existing[strings.ToLower(a.Name)] = true
	}

	for _, a := range addons {
		if existing[strings.ToLower(a.name)] {
			log.Info().Str("addon", a.name).Msg("Already seeded, skipping")
			continue
		}
		cid, err := categoryID(a.category)
		if err != nil {
			return err
		}
		if _, err := q.CreateAddon(ctx, database.CreateAddonParams{
			Name:       a.name,
			Price:      numeric(a.price),
			CategoryID: cid,
			Stock:      a.stock,
		}); err != nil {
			return fmt.Errorf("create addon %s: %w", a.name, err)
		}
		log.Info().Str("addon", a.name).Int32("stock", a.stock).Msg("Seeded add-on")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info().Msg("Catalog seeded")
	return nil
}

func numeric(s string) pgtype.Numeric {
	d := decimal.RequireFromString(s)
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
