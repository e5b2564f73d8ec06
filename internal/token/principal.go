package token

import "github.com/dropDatabas3/ssohub/internal/store/core"

// Principal es el resultado tipado de una validación exitosa. Es una suma
// sellada: el dispatch del resolutor es un único switch exhaustivo sobre el
// tag del token, sin herencia.
type Principal interface {
	principal()
}

// UserPrincipal: token USER válido, usuario existente y no revocado.
type UserPrincipal struct {
	User core.UserInfo
}

// ServicePrincipal: token SERVICE válido, secreto no rotado desde la emisión.
type ServicePrincipal struct {
	Service core.ServiceInfo
}

// OAuthCodePrincipal: código de autorización válido. Solo identidad; la
// revocación se re-chequea recién al canjearlo.
type OAuthCodePrincipal struct {
	User core.UserID
}

// OAuthAccessPrincipal: access token válido con el servicio ya resuelto.
type OAuthAccessPrincipal struct {
	User    core.UserID
	Service core.ServiceInfo
}

// OAuthRefreshPrincipal: refresh token válido con el servicio ya resuelto.
type OAuthRefreshPrincipal struct {
	User    core.UserID
	Service core.ServiceInfo
}

func (UserPrincipal) principal()         {}
func (ServicePrincipal) principal()      {}
func (OAuthCodePrincipal) principal()    {}
func (OAuthAccessPrincipal) principal()  {}
func (OAuthRefreshPrincipal) principal() {}
