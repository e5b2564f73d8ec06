// Package token implementa el codec, el emisor y el resolutor de los tokens
// firmados del SSO. Un token es un JWT compacto HS512 autocontenido: su
// autenticidad se verifica solo con sus bytes más la clave simétrica del
// proceso; no existe registro de tokens emitidos en el servidor.
package token

import (
	"errors"
	"time"
)

// Type es el conjunto cerrado de tipos de token. Un tag desconocido hace
// fallar la verificación.
type Type string

const (
	TypeUser              Type = "USER"
	TypeService           Type = "SERVICE"
	TypeOAuthCode         Type = "OAUTH_CODE"
	TypeOAuthAccessToken  Type = "OAUTH_ACCESS_TOKEN"
	TypeOAuthRefreshToken Type = "OAUTH_REFRESH_TOKEN"
)

// Validez por tipo. Son constantes de política, no de protocolo.
const (
	UserTokenValidity          = 90 * 24 * time.Hour
	ServiceTokenValidity       = 180 * 24 * time.Hour
	OAuthCodeValidity          = 10 * time.Minute
	AccessTokenMaxValidity     = 30 * 24 * time.Hour
	AccessTokenDefaultValidity = 24 * time.Hour
	RefreshTokenValidity       = 90 * 24 * time.Hour
)

var (
	// ErrInvalidToken cubre de manera uniforme firma inválida, token
	// malformado, expirado, tipo desconocido, sujeto inexistente y
	// revocación por timestamp. El caller nunca distingue entre ellos.
	ErrInvalidToken = errors.New("invalid token")

	// ErrValidityTooLong es una violación de política, distinguible de una
	// credencial inválida: la validez pedida para un access token supera el
	// máximo configurado. No se recorta en silencio.
	ErrValidityTooLong = errors.New("requested validity exceeds maximum")
)
