package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/themelab-io/themeboard-backend/api/controllers"
	adscontrollers "github.com/themelab-io/themeboard-backend/api/controllers/ads"
	"github.com/themelab-io/themeboard-backend/api/middleware"
	internalads "github.com/themelab-io/themeboard-backend/internal/ads"
	"github.com/themelab-io/themeboard-backend/pkg/config"
	"github.com/themelab-io/themeboard-backend/pkg/db"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	"github.com/themelab-io/themeboard-backend/pkg/logger"
	"github.com/themelab-io/themeboard-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	adsService internalads.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Click and exposure tracking is fired from the public rotation widget,
	// so it carries no credentials.
	r.Route("/api/public/ads", func(r chi.Router) {
		r.Post("/{adRequestID}/click", adscontrollers.TrackClick(adsService, logg))
		r.Post("/{adRequestID}/exposure", adscontrollers.TrackExposure(adsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/ads", adscontrollers.Submit(adsService, logg))
		r.Get("/ads", adscontrollers.Mine(adsService, logg))
		r.Get("/ads/exposure", adscontrollers.Exposure(adsService, logg))
		r.Get("/ads/{adRequestID}", adscontrollers.Detail(adsService, logg))
		r.Delete("/ads/{adRequestID}", adscontrollers.Cancel(adsService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		r.Get("/ads", adscontrollers.AdminList(adsService, logg))
	})

	return r
}
