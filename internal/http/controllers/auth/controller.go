// Package auth contiene los controllers de sesión de usuario.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/ssohub/internal/http/errors"
	"github.com/dropDatabas3/ssohub/internal/http/helpers"
	"github.com/dropDatabas3/ssohub/internal/http/middlewares"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/security/password"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Controller maneja login, cambio de password y perfil propio.
type Controller struct {
	store  core.UserRepository
	issuer *token.Issuer
}

func NewController(store core.UserRepository, issuer *token.Issuer) *Controller {
	return &Controller{store: store, issuer: issuer}
}

type loginRequest struct {
	User     string `json:"user"` // id numérico o email
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login maneja POST /v1/auth/login. La respuesta ante usuario inexistente,
// password incorrecto o usuario baneado es la misma: credenciales inválidas.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Login"))

	var req loginRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if req.User == "" || req.Password == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields)
		return
	}

	user, err := c.lookup(ctx, req.User)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			httperrors.WriteError(w, r, httperrors.ErrInvalidCredentials)
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}

	hash, err := c.store.GetPasswordHash(ctx, user.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if !password.Verify(req.Password, hash) || user.Permission == core.PermissionBanned {
		log.Debug("login rechazado", logger.UserID(int(user.ID)))
		httperrors.WriteError(w, r, httperrors.ErrInvalidCredentials)
		return
	}

	tok, err := c.issuer.MakeUserToken(user.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	log.Info("login ok", logger.UserID(int(user.ID)))
	helpers.WriteJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

func (c *Controller) lookup(ctx context.Context, key string) (*core.UserInfo, error) {
	if id, err := strconv.Atoi(key); err == nil {
		return c.store.GetUser(ctx, core.UserID(id))
	}
	return c.store.GetUserByEmail(ctx, key)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword maneja POST /v1/auth/changePassword. Avanza el timestamp de
// cambio (todos los tokens USER previos mueren) y devuelve un token fresco
// para no desloguear al que cambió.
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up := middlewares.GetPrincipal(ctx).(token.UserPrincipal)

	var req changePasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields)
		return
	}

	hash, err := c.store.GetPasswordHash(ctx, up.User.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if !password.Verify(req.OldPassword, hash) {
		httperrors.WriteError(w, r, httperrors.ErrInvalidCredentials)
		return
	}

	newHash, err := password.Hash(req.NewPassword)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if _, err := c.store.SetPassword(ctx, up.User.ID, newHash); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	tok, err := c.issuer.MakeUserToken(up.User.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	logger.From(ctx).Info("password cambiado", logger.UserID(int(up.User.ID)))
	helpers.WriteJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

// Me maneja GET /v1/auth/me: el perfil completo del usuario logueado.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up := middlewares.GetPrincipal(ctx).(token.UserPrincipal)

	full, err := c.store.GetUserFull(ctx, up.User.ID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, full)
}
