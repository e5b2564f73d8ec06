package token

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/ssohub/internal/observability/logger"
)

// Codec firma y verifica tokens con una única clave simétrica process-wide.
// La clave se inyecta al construir (config) y es read-only después: nada de
// lookups globales, cada test puede usar su propia clave.
type Codec struct {
	key []byte
	iss string
}

// NewCodec crea el codec. Si secret está vacío genera una clave aleatoria
// para la vida del proceso; todos los tokens previos quedan inverificables
// tras un reinicio (propiedad operativa aceptada, no un bug).
func NewCodec(secret, issuer string) *Codec {
	if secret == "" {
		secret = uuid.NewString()
		logger.Named("token").Warn("jwt.secret no configurado, usando clave aleatoria de proceso")
	}
	if issuer == "" {
		issuer = "ssohub"
	}
	return &Codec{key: []byte(secret), iss: issuer}
}

// Payload es el contenido verificado de un token.
type Payload struct {
	Type     Type
	IssuedAt time.Time
	claims   jwtv5.MapClaims
}

// IntClaim devuelve un claim entero (ids de usuario/servicio).
// ok=false si falta o no es numérico.
func (p *Payload) IntClaim(name string) (int, bool) {
	v, ok := p.claims[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Sign construye y firma un token del tipo dado con los claims enteros
// provistos. exp = iat + validity.
func (c *Codec) Sign(typ Type, validity time.Duration, claims map[string]int) (string, error) {
	now := time.Now().UTC()
	mc := jwtv5.MapClaims{
		"sub":  "Authentication",
		"type": string(typ),
		"iss":  c.iss,
		"iat":  now.Unix(),
		"exp":  now.Add(validity).Unix(),
	}
	for k, v := range claims {
		mc[k] = v
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS512, mc)
	signed, err := tk.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify valida firma, emisor y expiración, y devuelve el payload tipado.
// Cualquier fallo es ErrInvalidToken: el caller no distingue malformado de
// expirado ni de firmado por otra autoridad.
func (c *Codec) Verify(raw string) (*Payload, error) {
	tok, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return c.key, nil },
		jwtv5.WithValidMethods([]string{"HS512"}),
		jwtv5.WithIssuer(c.iss),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	typ, _ := mc["type"].(string)
	switch Type(typ) {
	case TypeUser, TypeService, TypeOAuthCode, TypeOAuthAccessToken, TypeOAuthRefreshToken:
	default:
		return nil, ErrInvalidToken
	}

	iatf, ok := mc["iat"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Payload{
		Type:     Type(typ),
		IssuedAt: time.Unix(int64(iatf), 0),
		claims:   mc,
	}, nil
}
