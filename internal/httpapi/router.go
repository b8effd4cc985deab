package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"marketplace/internal/api"
	"marketplace/internal/booking"
	"marketplace/internal/events"
	"marketplace/internal/message"
	"marketplace/internal/opportunity"
	"marketplace/pkg/config"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool

	// Optional collaborators. Nil Redis disables rate limiting; nil Publisher disables
	// domain events; nil Payer makes every PAY fail with PAYMENT_FAILED.
	Redis     *redis.Client
	Payer     booking.Payer
	Publisher booking.Publisher
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	bookingsRepo := booking.NewRepository(deps.DB)
	bookingHandlers := booking.Handlers{
		Bookings: bookingsRepo,
		Timeline: events.NewRepository(deps.DB),
		Executor: &booking.Executor{
			Store:     bookingsRepo,
			Payer:     deps.Payer,
			Publisher: deps.Publisher,
		},
		Creator: &booking.Creator{
			Opportunities: opportunity.NewRepository(deps.DB),
			Bookings:      bookingsRepo,
			Publisher:     deps.Publisher,
		},
	}
	messageHandlers := message.Handlers{
		Bookings:  bookingsRepo,
		Messages:  message.NewRepository(deps.DB),
		Publisher: deps.Publisher,
	}

	var bucket api.TokenBucket
	if deps.Redis != nil {
		bucket = api.RedisBucket{Client: deps.Redis, Cfg: deps.Cfg.RateLimit, Prefix: "rl:bookings"}
	}
	limited := api.RateLimit(deps.Cfg.RateLimit, bucket)

	// v1
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.CORSMiddleware(api.CORSOptions{
			AllowedOrigins: deps.Cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAgeSeconds:  600,
		}))
		r.Use(api.Authenticate(deps.Cfg))

		r.Get("/bookings", bookingHandlers.List)
		r.Get("/bookings/{id}", bookingHandlers.Get)
		r.Get("/bookings/{id}/events", bookingHandlers.Events)
		r.Get("/bookings/{id}/messages", messageHandlers.List)

		// State-changing routes
		r.Group(func(r chi.Router) {
			r.Use(limited)

			r.Post("/bookings", bookingHandlers.Create)
			r.Post("/bookings/{id}/transitions", bookingHandlers.Transition)
			r.Post("/bookings/{id}/messages", messageHandlers.Create)
		})
	})

	return r
}
