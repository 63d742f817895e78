package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/tudbom/counter-api/internal/config"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
	"github.com/tudbom/counter-api/internal/events"
	"github.com/tudbom/counter-api/internal/handler"
	mw "github.com/tudbom/counter-api/internal/middleware"
	"github.com/tudbom/counter-api/internal/service"
	"github.com/tudbom/counter-api/internal/ws"
)

// Stores holds the database pools. A nil Catalog means the catalog lives in
// the order database.
type Stores struct {
	Orders  *pgxpool.Pool
	Catalog *pgxpool.Pool
}

// NewOrderService wires the order coordinator over the given stores.
func NewOrderService(cfg *config.Config, stores Stores, publisher events.Publisher) *service.OrderService {
	catalogQueries := database.New(stores.Orders)
	var catalogDB service.TxBeginner
	if stores.Catalog != nil {
		catalogQueries = database.New(stores.Catalog)
		catalogDB = stores.Catalog
	}

	return service.NewOrderService(
		stores.Orders,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		catalogDB,
		func(db database.DBTX) service.CatalogStore { return database.New(db) },
		service.NewStockVerifier(catalogQueries),
		service.OrderServiceConfig{
			StoreTimeout: cfg.StoreTimeout,
			LockTimeout:  cfg.LockTimeout,
			Publisher:    publisher,
		},
	)
}

// New creates a Chi router with all application routes wired up.
// Staff-only routes sit behind authentication and a role check; order
// intake and the public board stay anonymous.
func New(cfg *config.Config, stores Stores, hub *ws.Hub, publisher events.Publisher) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	orderQueries := database.New(stores.Orders)
	catalogQueries := orderQueries
	health := map[string]handler.Pinger{"orders": stores.Orders}
	if stores.Catalog != nil {
		catalogQueries = database.New(stores.Catalog)
		health["catalog"] = stores.Catalog
	}

	// Public routes
	handler.NewHealthHandler(health).RegisterRoutes(r)
	handler.NewMenuHandler(catalogQueries).RegisterRoutes(r)

	// WebSocket route (resolves its audience from the optional token)
	r.Method(http.MethodGet, "/ws/orders", ws.NewHandler(hub, cfg.JWTSecret, cfg.CORSOrigins))

	// Orders: intake is anonymous and rate limited, the board is public,
	// everything else needs staff.
	limiter := mw.NewRateLimiter(cfg.OrderRateLimit, cfg.OrderRateBurst)
	orderHandler := handler.NewOrderHandler(
		NewOrderService(cfg, stores, publisher),
		service.NewLifecycleService(orderQueries, publisher),
		limiter.Handler,
	)
	r.Route("/orders", func(r chi.Router) {
		r.Use(mw.Identify(cfg.JWTSecret))
		orderHandler.RegisterRoutes(r)
	})

	// Staff-only routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin))

		reportsHandler := handler.NewReportsHandler(orderQueries)
		r.Route("/reports", reportsHandler.RegisterRoutes)
	})

	log.Debug().Bool("split_stores", stores.Catalog != nil).Msg("Router initialized")
	return r
}
