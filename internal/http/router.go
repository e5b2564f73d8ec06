// Package http arma el router y el servidor de la aplicación.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ssohub/internal/http/controllers/auth"
	"github.com/dropDatabas3/ssohub/internal/http/controllers/authz"
	"github.com/dropDatabas3/ssohub/internal/http/controllers/registry"
	"github.com/dropDatabas3/ssohub/internal/http/controllers/serviceapi"
	"github.com/dropDatabas3/ssohub/internal/http/helpers"
	"github.com/dropDatabas3/ssohub/internal/http/middlewares"
	"github.com/dropDatabas3/ssohub/internal/metrics"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/rate"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Deps agrupa lo que el router necesita para armar todos los endpoints.
type Deps struct {
	Store        core.Store
	Issuer       *token.Issuer
	Resolver     *token.Resolver
	OAuth        *oauth.Service
	LoginLimiter rate.Limiter // nil desactiva el límite
}

// NewRouter arma el árbol de rutas completo.
func NewRouter(d Deps) http.Handler {
	authCtrl := auth.NewController(d.Store, d.Issuer)
	registryCtrl := registry.NewController(d.Store, d.Issuer)
	authzCtrl := authz.NewController(d.Store, d.OAuth)
	apiCtrl := serviceapi.NewController(d.OAuth)

	withAuth := middlewares.WithAuth(d.Resolver)

	r := chi.NewRouter()
	r.Use(middlewares.WithRequestID(), middlewares.WithLogging())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Store.Ping(req.Context()); err != nil {
			helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			login := http.HandlerFunc(authCtrl.Login)
			if d.LoginLimiter != nil {
				r.Method(http.MethodPost, "/login", middlewares.WithRateLimit(d.LoginLimiter)(login))
			} else {
				r.Method(http.MethodPost, "/login", login)
			}
			r.Group(func(r chi.Router) {
				r.Use(withAuth, middlewares.RequireUser)
				r.Post("/changePassword", authCtrl.ChangePassword)
				r.Get("/me", authCtrl.Me)
			})
		})

		r.Route("/service", func(r chi.Router) {
			r.Use(withAuth, middlewares.RequireUser)
			r.Post("/", registryCtrl.Create)
			r.Get("/", registryCtrl.List)
			r.Get("/{id}", registryCtrl.Get)
			r.Put("/{id}", registryCtrl.Update)
			r.Get("/{id}/secret", registryCtrl.Secret)
			r.Post("/{id}/rotateSecret", registryCtrl.RotateSecret)
		})

		r.Route("/authorization", func(r chi.Router) {
			r.Use(withAuth, middlewares.RequireUser)
			r.Post("/", authzCtrl.Grant)
			r.Get("/", authzCtrl.List)
			r.Get("/code", authzCtrl.Code)
			r.Get("/{id}", authzCtrl.Get)
			r.Delete("/{id}", authzCtrl.Revoke)
		})
	})

	r.Route("/serviceApi", func(r chi.Router) {
		r.Use(withAuth)
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireService)
			r.Post("/accessToken", apiCtrl.AccessToken)
		})
		// refreshToken, status y userInfo autentican con el token de la
		// delegación misma (refresh/access), no con la credencial del
		// servicio: el par (service, user) viaja dentro del token.
		r.Post("/refreshToken", apiCtrl.RefreshToken)
		r.Get("/status", apiCtrl.Status)
		r.Get("/userInfo", apiCtrl.UserInfo)
	})

	return r
}
