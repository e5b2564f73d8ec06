// Package oauth orquesta el flujo de delegación: canje de códigos, refresh
// y entrega de userinfo según el nivel de permiso del servicio.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/ssohub/internal/cache"
	"github.com/dropDatabas3/ssohub/internal/metrics"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// Store es lo que el orquestador necesita del storage.
type Store interface {
	GetUserFull(ctx context.Context, id core.UserID) (*core.UserFull, error)
	GetAuthorizationFor(ctx context.Context, user core.UserID, service core.ServiceID) (*core.AuthorizationInfo, error)
}

// TokenPair es la respuesta del canje de un código.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service implementa el flujo completo. El cache guarda solo la proyección
// completa del usuario; el estado de autorización se consulta fresco siempre,
// porque decide qué proyección se entrega.
type Service struct {
	store    Store
	issuer   *token.Issuer
	resolver *token.Resolver
	cache    cache.Client
	ttl      time.Duration
}

func New(store Store, issuer *token.Issuer, resolver *token.Resolver, c cache.Client) *Service {
	return &Service{store: store, issuer: issuer, resolver: resolver, cache: c, ttl: 30 * time.Second}
}

// MakeCode emite un código para el usuario logueado. Siempre funciona: el
// código prueba identidad, no autorización; lo que el servicio pueda leer
// después lo decide el estado del grant en getUserInfo.
func (s *Service) MakeCode(_ context.Context, user core.UserID) (string, error) {
	return s.issuer.MakeOAuthCode(user)
}

// ExchangeCode canjea un código por el par access+refresh para el servicio
// llamante. validity <= 0 usa el default del access token; por encima del
// máximo la operación falla completa (token.ErrValidityTooLong).
func (s *Service) ExchangeCode(ctx context.Context, service core.ServiceID, rawCode string, validity time.Duration) (*TokenPair, error) {
	p, err := s.resolver.Resolve(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	code, ok := p.(token.OAuthCodePrincipal)
	if !ok {
		return nil, token.ErrInvalidToken
	}

	access, err := s.issuer.MakeOAuthAccessToken(service, code.User, validity)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.MakeOAuthRefreshToken(service, code.User)
	if err != nil {
		return nil, err
	}

	metrics.AuthorizationOps.WithLabelValues("exchange_code").Inc()
	logger.From(ctx).Info("código canjeado",
		logger.ServiceID(int(service)), logger.UserID(int(code.User)))
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueForUser emite el mismo par access+refresh pero iniciado por el
// servicio con un id de usuario directo, sin código de por medio. El usuario
// tiene que existir; el estado del grant no importa acá tampoco.
func (s *Service) IssueForUser(ctx context.Context, service core.ServiceID, user core.UserID, validity time.Duration) (*TokenPair, error) {
	if _, err := s.store.GetUserFull(ctx, user); err != nil {
		return nil, err
	}

	access, err := s.issuer.MakeOAuthAccessToken(service, user, validity)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.MakeOAuthRefreshToken(service, user)
	if err != nil {
		return nil, err
	}
	metrics.AuthorizationOps.WithLabelValues("issue_for_user").Inc()
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh emite un access token nuevo a partir de un refresh ya validado. No
// rota el refresh: el mismo sirve hasta que expire o se rote el secreto del
// servicio. El par (service, user) sale del propio refresh; no interviene la
// credencial del servicio.
func (s *Service) Refresh(ctx context.Context, refresh token.OAuthRefreshPrincipal, validity time.Duration) (string, error) {
	access, err := s.issuer.MakeOAuthAccessToken(refresh.Service.ID, refresh.User, validity)
	if err != nil {
		return "", err
	}
	metrics.AuthorizationOps.WithLabelValues("refresh").Inc()
	return access, nil
}

// Status devuelve el estado lógico del grant usuario↔servicio. Sin fila es
// UNAUTHORIZED, nunca un error.
func (s *Service) Status(ctx context.Context, user core.UserID, service core.ServiceID) (core.AuthorizationStatus, error) {
	a, err := s.store.GetAuthorizationFor(ctx, user, service)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", err
	}
	return a.Status(), nil
}

// UserInfo entrega la proyección del usuario que el nivel configurado del
// servicio permite para el estado actual del grant. Con nivel NONE el
// recurso no existe para el llamante (core.ErrNotFound).
func (s *Service) UserInfo(ctx context.Context, access token.OAuthAccessPrincipal) (any, error) {
	status, err := s.Status(ctx, access.User, access.Service.ID)
	if err != nil {
		return nil, err
	}

	switch access.Service.TierFor(status) {
	case core.ServicePermissionAll:
		full, err := s.userFull(ctx, access.User)
		if err != nil {
			return nil, err
		}
		return full, nil
	case core.ServicePermissionBasic:
		full, err := s.userFull(ctx, access.User)
		if err != nil {
			return nil, err
		}
		return full.ToBasic(), nil
	default:
		return nil, core.ErrNotFound
	}
}

// userFull lee la proyección completa pasando por el cache. Un fallo del
// cache degrada a la lectura directa, nunca tumba el request.
func (s *Service) userFull(ctx context.Context, id core.UserID) (*core.UserFull, error) {
	key := fmt.Sprintf("userinfo:%d", id)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var u core.UserFull
			if err := json.Unmarshal([]byte(raw), &u); err == nil {
				return &u, nil
			}
		}
	}

	u, err := s.store.GetUserFull(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(u); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
				logger.From(ctx).Debug("cache set falló", logger.Err(err))
			}
		}
	}
	return u, nil
}

// InvalidateUser borra la proyección cacheada tras una edición del perfil.
func (s *Service) InvalidateUser(ctx context.Context, id core.UserID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, fmt.Sprintf("userinfo:%d", id))
}
