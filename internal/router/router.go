package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dapoer-pos/api/internal/config"
	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/handler"
	mw "github.com/dapoer-pos/api/internal/middleware"
	"github.com/dapoer-pos/api/internal/service"
	"github.com/dapoer-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://kasir.dapoer.id"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	r.Route("/auth", authHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	shiftService := service.NewShiftService(queries, pool, func(db database.DBTX) service.ShiftStore {
		return database.New(db)
	})
	saleService := service.NewSaleService(pool, func(db database.DBTX) service.SaleStore {
		return database.New(db)
	})
	stockService := service.NewStockService(queries, pool, func(db database.DBTX) service.StockStore {
		return database.New(db)
	})
	heldOrderService := service.NewHeldOrderService(queries)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		shiftHandler := handler.NewShiftHandler(shiftService, queries)
		r.Route("/shifts", shiftHandler.RegisterRoutes)

		saleHandler := handler.NewSaleHandler(saleService, queries, hub)
		r.Route("/sales", saleHandler.RegisterRoutes)

		heldOrderHandler := handler.NewHeldOrderHandler(heldOrderService)
		r.Route("/held-orders", heldOrderHandler.RegisterRoutes)

		stockHandler := handler.NewStockHandler(stockService, queries)
		r.Route("/products", stockHandler.RegisterProductRoutes)
		r.Route("/ingredients", stockHandler.RegisterRoutes)
	})

	return r
}
