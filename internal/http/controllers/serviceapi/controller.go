// Package serviceapi contiene los endpoints que consumen los servicios de
// terceros con su propia credencial.
package serviceapi

import (
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/ssohub/internal/http/errors"
	"github.com/dropDatabas3/ssohub/internal/http/helpers"
	"github.com/dropDatabas3/ssohub/internal/http/middlewares"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Controller expone el flujo de delegación a los servicios.
type Controller struct {
	oauth *oauth.Service
}

func NewController(oauthSvc *oauth.Service) *Controller {
	return &Controller{oauth: oauthSvc}
}

func callerService(r *http.Request) (core.ServiceInfo, bool) {
	sp, ok := middlewares.GetPrincipal(r.Context()).(token.ServicePrincipal)
	return sp.Service, ok
}

type accessTokenRequest struct {
	Code     string      `json:"code,omitempty"`
	User     core.UserID `json:"user,omitempty"`
	Validity int64       `json:"validity,omitempty"` // segundos; 0 usa el default
}

// AccessToken maneja POST /serviceApi/accessToken. Con `code` canjea el
// código; con `user` emite directo para ese id. Ambos caminos convergen en
// la misma emisión del par access+refresh.
func (c *Controller) AccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, ok := callerService(r)
	if !ok {
		httperrors.WriteError(w, r, token.ErrInvalidToken)
		return
	}

	var req accessTokenRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	validity := time.Duration(req.Validity) * time.Second

	var pair *oauth.TokenPair
	var err error
	switch {
	case req.Code != "":
		pair, err = c.oauth.ExchangeCode(ctx, svc.ID, req.Code, validity)
	case req.User > 0:
		pair, err = c.oauth.IssueForUser(ctx, svc.ID, req.User, validity)
	default:
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("code or user"))
		return
	}
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	Validity int64 `json:"validity,omitempty"` // segundos; 0 usa el default
}

type accessResponse struct {
	AccessToken string `json:"accessToken"`
}

// RefreshToken maneja POST /serviceApi/refreshToken. El bearer es el propio
// refresh token: el par (service, user) sale de ahí, no hace falta la
// credencial del servicio. Devuelve solo un access nuevo; el refresh original
// sigue vigente.
func (c *Controller) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rp, ok := middlewares.GetPrincipal(ctx).(token.OAuthRefreshPrincipal)
	if !ok {
		httperrors.WriteError(w, r, token.ErrInvalidToken)
		return
	}

	// El body es opcional: sin él se usa la validez default.
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := helpers.ReadJSON(w, r, &req); err != nil {
			httperrors.WriteError(w, r, err)
			return
		}
	}

	access, err := c.oauth.Refresh(ctx, rp, time.Duration(req.Validity)*time.Second)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, accessResponse{AccessToken: access})
}

type statusResponse struct {
	Status core.AuthorizationStatus `json:"status"`
}

// Status maneja GET /serviceApi/status. El bearer es el access token de la
// delegación; el estado es el del par (user, service) que el token trae.
// Sin fila es UNAUTHORIZED, no un 404.
func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ap, ok := middlewares.GetPrincipal(ctx).(token.OAuthAccessPrincipal)
	if !ok {
		httperrors.WriteError(w, r, token.ErrInvalidToken)
		return
	}

	status, err := c.oauth.Status(ctx, ap.User, ap.Service.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, statusResponse{Status: status})
}

// UserInfo maneja GET /serviceApi/userInfo. El bearer acá es el access token
// de la delegación; la proyección depende del nivel configurado del servicio
// para el estado actual del grant. Nivel NONE lee como recurso inexistente.
func (c *Controller) UserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ap, ok := middlewares.GetPrincipal(ctx).(token.OAuthAccessPrincipal)
	if !ok {
		httperrors.WriteError(w, r, token.ErrInvalidToken)
		return
	}

	info, err := c.oauth.UserInfo(ctx, ap)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, info)
}
