package token

import (
	"time"

	"github.com/dropDatabas3/ssohub/internal/metrics"
	"github.com/dropDatabas3/ssohub/internal/store/core"
)

// Issuer emite tokens tipados con las formas de claims y validez de cada tipo.
type Issuer struct {
	codec *Codec
}

func NewIssuer(codec *Codec) *Issuer {
	return &Issuer{codec: codec}
}

func (i *Issuer) sign(typ Type, validity time.Duration, claims map[string]int) (string, error) {
	signed, err := i.codec.Sign(typ, validity, claims)
	if err != nil {
		return "", err
	}
	metrics.TokensIssued.WithLabelValues(string(typ)).Inc()
	return signed, nil
}

// MakeUserToken emite un token de sesión de usuario (claim "id").
func (i *Issuer) MakeUserToken(user core.UserID) (string, error) {
	return i.sign(TypeUser, UserTokenValidity, map[string]int{"id": int(user)})
}

// MakeServiceToken emite la credencial de un servicio (claim "id").
// El "secreto" de un servicio es exactamente este token.
func (i *Issuer) MakeServiceToken(service core.ServiceID) (string, error) {
	return i.sign(TypeService, ServiceTokenValidity, map[string]int{"id": int(service)})
}

// MakeOAuthCode emite un código de autorización ligado solo al usuario.
// No depende del servicio: cualquier usuario logueado lo obtiene siempre.
func (i *Issuer) MakeOAuthCode(user core.UserID) (string, error) {
	return i.sign(TypeOAuthCode, OAuthCodeValidity, map[string]int{"id": int(user)})
}

// MakeOAuthAccessToken emite un access token para el par (service, user).
// validity <= 0 usa el default; por encima del máximo devuelve
// ErrValidityTooLong (violación de política, nunca se recorta).
func (i *Issuer) MakeOAuthAccessToken(service core.ServiceID, user core.UserID, validity time.Duration) (string, error) {
	if validity <= 0 {
		validity = AccessTokenDefaultValidity
	}
	if validity > AccessTokenMaxValidity {
		return "", ErrValidityTooLong
	}
	return i.sign(TypeOAuthAccessToken, validity, map[string]int{
		"service": int(service),
		"user":    int(user),
	})
}

// MakeOAuthRefreshToken emite un refresh token para el par (service, user).
func (i *Issuer) MakeOAuthRefreshToken(service core.ServiceID, user core.UserID) (string, error) {
	return i.sign(TypeOAuthRefreshToken, RefreshTokenValidity, map[string]int{
		"service": int(service),
		"user":    int(user),
	})
}
