package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fantaleague/auction-system/handlers"
	"github.com/fantaleague/auction-system/middleware"
)

// SetupRoutes собирает маршрутизатор. Все аукционные операции требуют
// аутентификации; публичного API у движка нет.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	auctionHandler *handlers.AuctionHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(jwtSecret))

		r.Post("/presence", auctionHandler.ActivatePresence)

		r.Route("/leagues/{leagueID}", func(r chi.Router) {
			r.Get("/budget", auctionHandler.GetBudget)
			r.Get("/ledger", auctionHandler.GetLedger)

			r.Route("/players/{playerID}", func(r chi.Router) {
				r.Post("/bids", auctionHandler.PlaceBid)
				r.Post("/lot", auctionHandler.StartLot)
				r.Get("/lot", auctionHandler.GetLot)
				r.Post("/response", auctionHandler.Respond)
			})
		})

		r.Get("/ws/leagues/{leagueID}", webSocketHandler.ServeLeague)
		r.Get("/ws/me", webSocketHandler.ServeUser)
	})
}
