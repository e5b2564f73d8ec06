package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/ssohub/internal/http/errors"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// BearerToken extrae el token crudo del header Authorization.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithAuth resuelve el bearer token a un Principal y lo deja en el contexto.
// Sin header o con token inválido la respuesta es la misma (401 uniforme);
// un fallo del storage es 500, nunca se disfraza de no-autorizado.
func WithAuth(resolver *token.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				httperrors.WriteError(w, r, token.ErrInvalidToken)
				return
			}
			p, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				httperrors.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(setPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser exige que el principal sea una sesión de usuario.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipal(r.Context()).(token.UserPrincipal); !ok {
			httperrors.WriteError(w, r, token.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireService exige que el principal sea la credencial de un servicio.
func RequireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipal(r.Context()).(token.ServicePrincipal); !ok {
			httperrors.WriteError(w, r, token.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin exige sesión de usuario con permiso administrativo.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up, ok := GetPrincipal(r.Context()).(token.UserPrincipal)
		if !ok {
			httperrors.WriteError(w, r, token.ErrInvalidToken)
			return
		}
		if !up.User.Permission.HasAdmin() {
			httperrors.WriteError(w, r, httperrors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
