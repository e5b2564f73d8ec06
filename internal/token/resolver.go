package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/ssohub/internal/metrics"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/store/core"
)

// CredentialStore es lo único que el resolutor necesita del storage: lookups
// de sujeto con su timestamp de revocación. Se re-consulta fresco en cada
// validación; el estado de revocación nunca se cachea.
type CredentialStore interface {
	GetUserWithLastPasswordChange(ctx context.Context, id core.UserID) (*core.UserInfo, time.Time, error)
	GetServiceWithSecretRevokedTime(ctx context.Context, id core.ServiceID) (*core.ServiceInfo, time.Time, error)
}

// Resolver verifica un token crudo y lo resuelve a un Principal tipado.
type Resolver struct {
	codec *Codec
	store CredentialStore
}

func NewResolver(codec *Codec, store CredentialStore) *Resolver {
	return &Resolver{codec: codec, store: store}
}

// Resolve es de solo lectura: no tiene efectos más allá de los lookups.
//
// Contrato de errores: toda invalidez de credencial (firma, expiración, tipo
// desconocido, claim faltante, sujeto inexistente, revocado por timestamp)
// es ErrInvalidToken, indistinguible para el caller. Los errores de
// infraestructura del storage se propagan tal cual: jamás se degradan a
// "token inválido".
func (r *Resolver) Resolve(ctx context.Context, raw string) (Principal, error) {
	p, err := r.resolve(ctx, raw)
	switch {
	case err == nil:
		metrics.TokenValidations.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrInvalidToken):
		metrics.TokenValidations.WithLabelValues("invalid").Inc()
	default:
		metrics.TokenValidations.WithLabelValues("error").Inc()
	}
	return p, err
}

func (r *Resolver) resolve(ctx context.Context, raw string) (Principal, error) {
	payload, err := r.codec.Verify(raw)
	if err != nil {
		return nil, err
	}

	log := logger.From(ctx).With(logger.TokenType(string(payload.Type)))

	switch payload.Type {
	case TypeUser:
		id, ok := payload.IntClaim("id")
		if !ok {
			return nil, ErrInvalidToken
		}
		user, lastChange, err := r.store.GetUserWithLastPasswordChange(ctx, core.UserID(id))
		if err != nil {
			return nil, storeErr(err)
		}
		if revokedAfter(lastChange, payload.IssuedAt) {
			log.Debug("token emitido antes del cambio de password",
				logger.UserID(id))
			return nil, ErrInvalidToken
		}
		return UserPrincipal{User: *user}, nil

	case TypeService:
		id, ok := payload.IntClaim("id")
		if !ok {
			return nil, ErrInvalidToken
		}
		svc, revoked, err := r.store.GetServiceWithSecretRevokedTime(ctx, core.ServiceID(id))
		if err != nil {
			return nil, storeErr(err)
		}
		if revokedAfter(revoked, payload.IssuedAt) {
			log.Debug("token emitido antes de la rotación de secreto",
				logger.ServiceID(id))
			return nil, ErrInvalidToken
		}
		return ServicePrincipal{Service: *svc}, nil

	case TypeOAuthCode:
		// Sin chequeo de revocación: es de vida corta y se re-valida por
		// identidad al canjearlo.
		id, ok := payload.IntClaim("id")
		if !ok {
			return nil, ErrInvalidToken
		}
		return OAuthCodePrincipal{User: core.UserID(id)}, nil

	case TypeOAuthAccessToken, TypeOAuthRefreshToken:
		serviceID, ok := payload.IntClaim("service")
		if !ok {
			return nil, ErrInvalidToken
		}
		userID, ok := payload.IntClaim("user")
		if !ok {
			return nil, ErrInvalidToken
		}
		svc, revoked, err := r.store.GetServiceWithSecretRevokedTime(ctx, core.ServiceID(serviceID))
		if err != nil {
			return nil, storeErr(err)
		}
		if revokedAfter(revoked, payload.IssuedAt) {
			log.Debug("token emitido antes de la rotación de secreto",
				logger.ServiceID(serviceID))
			return nil, ErrInvalidToken
		}
		if payload.Type == TypeOAuthAccessToken {
			return OAuthAccessPrincipal{User: core.UserID(userID), Service: *svc}, nil
		}
		return OAuthRefreshPrincipal{User: core.UserID(userID), Service: *svc}, nil
	}

	return nil, ErrInvalidToken
}

// revokedAfter compara con granularidad de segundos: el claim iat no tiene
// sub-segundos, los timestamps del storage sí. Empate en el mismo segundo
// cuenta como emitido después del cambio (estrictamente "después").
func revokedAfter(revoked, issuedAt time.Time) bool {
	return revoked.Truncate(time.Second).After(issuedAt)
}

// storeErr mapea ErrNotFound a invalidez de credencial (sujeto inexistente)
// y deja pasar el resto como error de infraestructura.
func storeErr(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return ErrInvalidToken
	}
	return fmt.Errorf("token: credential store: %w", err)
}
