// Package authz contiene los controllers de autorizaciones usuario↔servicio.
package authz

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/ssohub/internal/http/errors"
	"github.com/dropDatabas3/ssohub/internal/http/helpers"
	"github.com/dropDatabas3/ssohub/internal/http/middlewares"
	"github.com/dropDatabas3/ssohub/internal/metrics"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Store es lo que el controller necesita: grants y la fila de servicio para
// validar que sea autorizable.
type Store interface {
	core.AuthorizationRepository
	GetService(ctx context.Context, id core.ServiceID) (*core.ServiceInfo, error)
}

// Controller maneja grants, revocaciones y la emisión de códigos OAuth.
type Controller struct {
	store Store
	oauth *oauth.Service
}

func NewController(store Store, oauthSvc *oauth.Service) *Controller {
	return &Controller{store: store, oauth: oauthSvc}
}

func currentUser(r *http.Request) core.UserInfo {
	return middlewares.GetPrincipal(r.Context()).(token.UserPrincipal).User
}

type grantRequest struct {
	Service core.ServiceID `json:"service"`
}

type grantResponse struct {
	ID     core.AuthorizationID     `json:"id"`
	Status core.AuthorizationStatus `json:"status"`
}

// Grant maneja POST /v1/authorization. Idempotente: re-otorgar reactiva la
// misma fila. Solo servicios NORMAL son autorizables, salvo que el que
// otorga sea el dueño o un admin.
func (c *Controller) Grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	var req grantRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if req.Service <= 0 {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("service"))
		return
	}

	svc, err := c.store.GetService(ctx, req.Service)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if svc.Status != core.ServiceNormal && svc.Owner != user.ID && !user.Permission.HasAdmin() {
		httperrors.WriteError(w, r, core.ErrNotFound)
		return
	}

	id, err := c.store.Grant(ctx, user.ID, req.Service)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	metrics.AuthorizationOps.WithLabelValues("grant").Inc()
	logger.From(ctx).Info("autorización otorgada",
		logger.GrantID(int(id)), logger.UserID(int(user.ID)), logger.ServiceID(int(req.Service)))
	helpers.WriteJSON(w, http.StatusOK, grantResponse{ID: id, Status: core.StatusAuthorized})
}

// Revoke maneja DELETE /v1/authorization/{id}. Solo el titular del grant.
// La fila no se borra: queda cancelada.
func (c *Controller) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}

	a, err := c.store.GetAuthorization(ctx, core.AuthorizationID(id))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if a.User != user.ID {
		httperrors.WriteError(w, r, httperrors.ErrForbidden)
		return
	}

	if _, err := c.store.RevokeByID(ctx, a.ID); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	metrics.AuthorizationOps.WithLabelValues("revoke").Inc()
	logger.From(ctx).Info("autorización cancelada", logger.GrantID(id))
	w.WriteHeader(http.StatusNoContent)
}

// Get maneja GET /v1/authorization/{id}. Titular o admin.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}
	a, err := c.store.GetAuthorization(ctx, core.AuthorizationID(id))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if a.User != user.ID && !user.Permission.HasAdmin() {
		httperrors.WriteError(w, r, core.ErrNotFound)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, a)
}

// List maneja GET /v1/authorization: las autorizaciones vigentes del usuario
// logueado. Las canceladas no aparecen acá.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	begin, _ := strconv.ParseInt(r.URL.Query().Get("begin"), 10, 64)
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if count <= 0 || count > 100 {
		count = 20
	}

	page, err := c.store.ListByUser(ctx, user.ID, begin, count)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, page)
}

type codeResponse struct {
	Code string `json:"code"`
}

// Code maneja GET /v1/authorization/code. Incondicional para cualquier
// usuario logueado: el código prueba identidad, no otorga permisos.
func (c *Controller) Code(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	code, err := c.oauth.MakeCode(ctx, user.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	metrics.AuthorizationOps.WithLabelValues("code").Inc()
	helpers.WriteJSON(w, http.StatusOK, codeResponse{Code: code})
}
