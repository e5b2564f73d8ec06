// Package registry contiene los controllers del registro de servicios.
package registry

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/ssohub/internal/http/errors"
	"github.com/dropDatabas3/ssohub/internal/http/helpers"
	"github.com/dropDatabas3/ssohub/internal/http/middlewares"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Controller maneja el alta, edición y secretos de servicios.
type Controller struct {
	store  core.ServiceRepository
	issuer *token.Issuer
}

func NewController(store core.ServiceRepository, issuer *token.Issuer) *Controller {
	return &Controller{store: store, issuer: issuer}
}

func currentUser(r *http.Request) core.UserInfo {
	return middlewares.GetPrincipal(r.Context()).(token.UserPrincipal).User
}

func serviceID(r *http.Request) (core.ServiceID, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return core.ServiceID(id), true
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createResponse struct {
	ID core.ServiceID `json:"id"`
}

// Create maneja POST /v1/service. El servicio nace PENDING con niveles NONE;
// un admin lo aprueba después.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	var req createRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if req.Name == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("name"))
		return
	}

	id, err := c.store.CreateService(ctx, req.Name, req.Description, user.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	logger.From(ctx).Info("servicio creado",
		logger.ServiceID(int(id)), logger.UserID(int(user.ID)))
	helpers.WriteJSON(w, http.StatusCreated, createResponse{ID: id})
}

// Get maneja GET /v1/service/{id}. Dueño y admin ven la fila completa; el
// resto ve la proyección básica, y solo de servicios NORMAL.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, ok := serviceID(r)
	if !ok {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	if svc.Owner == user.ID || user.Permission.HasAdmin() {
		helpers.WriteJSON(w, http.StatusOK, svc)
		return
	}
	if svc.Status != core.ServiceNormal {
		httperrors.WriteError(w, r, core.ErrNotFound)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, svc.ToBasic())
}

// List maneja GET /v1/service con filtros owner/status y paginación begin/count.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	q := r.URL.Query()

	var owner *core.UserID
	if v := q.Get("owner"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("owner"))
			return
		}
		o := core.UserID(id)
		owner = &o
	}
	var status *core.ServiceStatus
	if v := q.Get("status"); v != "" {
		st := core.ServiceStatus(v)
		status = &st
	}
	begin, _ := strconv.ParseInt(q.Get("begin"), 10, 64)
	count, _ := strconv.Atoi(q.Get("count"))
	if count <= 0 || count > 100 {
		count = 20
	}

	page, err := c.store.ListServices(ctx, &user, owner, status, begin, count)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, page)
}

type updateRequest struct {
	Name                string                  `json:"name"`
	Description         string                  `json:"description"`
	Unauthorized        *core.ServicePermission `json:"unauthorized"`
	Authorized          *core.ServicePermission `json:"authorized"`
	CancelAuthorization *core.ServicePermission `json:"cancelAuthorization"`
	Status              *core.ServiceStatus     `json:"status"` // solo admin
}

// Update maneja PUT /v1/service/{id}. La edición del dueño queda en los
// campos pending a la espera de revisión; la de un admin aplica directo y
// limpia lo pendiente.
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, ok := serviceID(r)
	if !ok {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	admin := user.Permission.HasAdmin()
	if svc.Owner != user.ID && !admin {
		httperrors.WriteError(w, r, httperrors.ErrForbidden)
		return
	}

	var req updateRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	if admin {
		applyDirect(svc, &req)
	} else {
		applyPending(svc, &req)
	}

	if err := c.store.UpdateService(ctx, svc); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	logger.From(ctx).Info("servicio actualizado",
		logger.ServiceID(int(id)), logger.Bool("admin", admin))
	helpers.WriteJSON(w, http.StatusOK, svc)
}

func applyDirect(svc *core.ServiceInfo, req *updateRequest) {
	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.Description != "" {
		svc.Description = req.Description
	}
	if req.Unauthorized != nil {
		svc.Unauthorized = *req.Unauthorized
	}
	if req.Authorized != nil {
		svc.Authorized = *req.Authorized
	}
	if req.CancelAuthorization != nil {
		svc.CancelAuthorization = *req.CancelAuthorization
	}
	if req.Status != nil {
		svc.Status = *req.Status
	}
	svc.PendingName = nil
	svc.PendingDescription = nil
	svc.PendingUnauthorized = nil
	svc.PendingAuthorized = nil
	svc.PendingCancelAuthorization = nil
}

func applyPending(svc *core.ServiceInfo, req *updateRequest) {
	if req.Name != "" {
		svc.PendingName = &req.Name
	}
	if req.Description != "" {
		svc.PendingDescription = &req.Description
	}
	svc.PendingUnauthorized = req.Unauthorized
	svc.PendingAuthorized = req.Authorized
	svc.PendingCancelAuthorization = req.CancelAuthorization
}

type secretResponse struct {
	Secret string `json:"secret"`
}

// Secret maneja GET /v1/service/{id}/secret: emite la credencial SERVICE.
// Solo el dueño; el "secreto" del servicio es exactamente este token.
func (c *Controller) Secret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, ok := serviceID(r)
	if !ok {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if svc.Owner != user.ID {
		httperrors.WriteError(w, r, httperrors.ErrForbidden)
		return
	}

	tok, err := c.issuer.MakeServiceToken(id)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, secretResponse{Secret: tok})
}

// RotateSecret maneja POST /v1/service/{id}/rotateSecret. Dueño o admin;
// avanza secret_revoked_time y con eso mueren todos los tokens SERVICE,
// ACCESS y REFRESH ya emitidos para el servicio.
func (c *Controller) RotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	id, ok := serviceID(r)
	if !ok {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id"))
		return
	}
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if svc.Owner != user.ID && !user.Permission.HasAdmin() {
		httperrors.WriteError(w, r, httperrors.ErrForbidden)
		return
	}

	if _, err := c.store.RevokeSecret(ctx, id); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	logger.From(ctx).Info("secreto rotado", logger.ServiceID(int(id)))
	w.WriteHeader(http.StatusNoContent)
}
