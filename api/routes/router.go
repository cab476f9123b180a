package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendeo/vendeo-backend/api/controllers"
	commissioncontrollers "github.com/vendeo/vendeo-backend/api/controllers/commissions"
	cvdcontrollers "github.com/vendeo/vendeo-backend/api/controllers/cvd"
	distributorcontrollers "github.com/vendeo/vendeo-backend/api/controllers/distributors"
	qualificationcontrollers "github.com/vendeo/vendeo-backend/api/controllers/qualifications"
	"github.com/vendeo/vendeo-backend/api/middleware"
	"github.com/vendeo/vendeo-backend/internal/commissions"
	"github.com/vendeo/vendeo-backend/internal/cvd"
	"github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/internal/qualification"
	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/redis"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	CVD           cvd.Service
	Distributors  distributors.Service
	Qualification qualification.Service
	Commissions   commissions.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	services Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	var idempotencyStore redis.KV
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cvd", func(r chi.Router) {
			r.Get("/tiers", cvdcontrollers.Tiers(services.CVD, logg))
			r.Post("/simulate", cvdcontrollers.Simulate(services.CVD, logg))
			r.Get("/sellers/{sellerId}/months/{month}", cvdcontrollers.SellerMonth(services.CVD, logg))
		})

		r.Route("/distributors", func(r chi.Router) {
			r.Post("/", distributorcontrollers.Register(services.Distributors, logg))
			r.Route("/{distributorId}", func(r chi.Router) {
				r.Get("/", distributorcontrollers.Detail(services.Distributors, logg))
				r.Patch("/parent", distributorcontrollers.Reparent(services.Distributors, logg))
				r.Get("/children", distributorcontrollers.Children(services.Distributors, logg))
				r.Get("/subtree", distributorcontrollers.Subtree(services.Distributors, logg))
				r.Get("/ascendants", distributorcontrollers.Ascendants(services.Distributors, logg))
				r.Get("/qualification", distributorcontrollers.Qualification(services.Qualification, logg, time.Now))
			})
		})

		r.Post("/qualifications/evaluate", qualificationcontrollers.Evaluate(services.Qualification, logg))

		r.Route("/commissions", func(r chi.Router) {
			r.With(middleware.Idempotency(idempotencyStore, cfg.Commission.IdempotencyTTL, logg)).
				Post("/propagate", commissioncontrollers.Propagate(services.Commissions, logg))
			r.Route("/{distributorId}/months/{month}", func(r chi.Router) {
				r.Get("/", commissioncontrollers.Monthly(services.Commissions, logg))
				r.Post("/validate", commissioncontrollers.Validate(services.Commissions, logg))
				r.Post("/pay", commissioncontrollers.Pay(services.Commissions, logg))
			})
		})
	})

	return r
}
