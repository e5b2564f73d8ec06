package oauth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/ssohub/internal/cache"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/store/memory"
	"github.com/dropDatabas3/ssohub/internal/token"
)

type fixture struct {
	store    *memory.Store
	issuer   *token.Issuer
	resolver *token.Resolver
	svc      *oauth.Service
	user     core.UserID
	service  core.ServiceID
}

// newFixture arma el flujo completo sobre el store en memoria: un usuario,
// un servicio NORMAL con niveles NONE/ALL/BASIC según estado del grant.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	user, err := store.CreateUser(ctx, "alice", "alice@example.com", "$hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	serviceID, err := store.CreateService(ctx, "calendar", "a calendar", user)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	svc, _ := store.GetService(ctx, serviceID)
	svc.Status = core.ServiceNormal
	svc.Unauthorized = core.ServicePermissionNone
	svc.Authorized = core.ServicePermissionAll
	svc.CancelAuthorization = core.ServicePermissionBasic
	if err := store.UpdateService(ctx, svc); err != nil {
		t.Fatalf("update service: %v", err)
	}

	codec := token.NewCodec("oauth-test-key", "ssohub")
	issuer := token.NewIssuer(codec)
	resolver := token.NewResolver(codec, store)
	orch := oauth.New(store, issuer, resolver, cache.NewMemory("test", time.Minute))

	return &fixture{
		store: store, issuer: issuer, resolver: resolver, svc: orch,
		user: user, service: serviceID,
	}
}

func (f *fixture) accessPrincipal(t *testing.T, raw string) token.OAuthAccessPrincipal {
	t.Helper()
	p, err := f.resolver.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("resolve access: %v", err)
	}
	ap, ok := p.(token.OAuthAccessPrincipal)
	if !ok {
		t.Fatalf("expected access principal, got %T", p)
	}
	return ap
}

func (f *fixture) refreshPrincipal(t *testing.T, raw string) token.OAuthRefreshPrincipal {
	t.Helper()
	p, err := f.resolver.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("resolve refresh: %v", err)
	}
	rp, ok := p.(token.OAuthRefreshPrincipal)
	if !ok {
		t.Fatalf("expected refresh principal, got %T", p)
	}
	return rp
}

// El canje funciona sin grant previo: el código prueba identidad, no permiso.
func TestExchangeWorksWithoutGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.MakeCode(ctx, f.user)
	if err != nil {
		t.Fatalf("make code: %v", err)
	}
	pair, err := f.svc.ExchangeCode(ctx, f.service, code, 0)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("both tokens must be issued")
	}

	status, err := f.svc.Status(ctx, f.user, f.service)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != core.StatusUnauthorized {
		t.Fatalf("no grant row yet, expected UNAUTHORIZED, got %s", status)
	}
}

func TestUserInfoFollowsGrantState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, _ := f.svc.MakeCode(ctx, f.user)
	pair, err := f.svc.ExchangeCode(ctx, f.service, code, 0)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	access := f.accessPrincipal(t, pair.AccessToken)

	// Sin grant: nivel unauthorized = NONE, el recurso no existe.
	if _, err := f.svc.UserInfo(ctx, access); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unauthorized tier NONE must read as not found, got %v", err)
	}

	// Grant activo: nivel authorized = ALL, proyección completa con email.
	if _, err := f.store.Grant(ctx, f.user, f.service); err != nil {
		t.Fatalf("grant: %v", err)
	}
	info, err := f.svc.UserInfo(ctx, access)
	if err != nil {
		t.Fatalf("userinfo: %v", err)
	}
	full, ok := info.(*core.UserFull)
	if !ok {
		t.Fatalf("expected full projection, got %T", info)
	}
	if full.Email != "alice@example.com" {
		t.Fatalf("full projection must carry email: %+v", full)
	}

	// Grant cancelado: nivel cancelAuthorization = BASIC, sin degradarse a
	// unauthorized ni mantener el nivel de autorizado.
	if _, err := f.store.Revoke(ctx, f.user, f.service); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	info, err = f.svc.UserInfo(ctx, access)
	if err != nil {
		t.Fatalf("userinfo after revoke: %v", err)
	}
	basic, ok := info.(core.BasicUserInfo)
	if !ok {
		t.Fatalf("expected basic projection after revoke, got %T", info)
	}
	if basic.Username != "alice" || basic.Email != "alice@example.com" {
		t.Fatalf("unexpected basic projection: %+v", basic)
	}

	// Re-grant vuelve al nivel de autorizado con la misma fila.
	if _, err := f.store.Grant(ctx, f.user, f.service); err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	info, err = f.svc.UserInfo(ctx, access)
	if err != nil {
		t.Fatalf("userinfo after re-grant: %v", err)
	}
	if _, ok := info.(*core.UserFull); !ok {
		t.Fatalf("expected full projection after re-grant, got %T", info)
	}
}

func TestRefreshIssuesNewAccessOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, _ := f.svc.MakeCode(ctx, f.user)
	pair, _ := f.svc.ExchangeCode(ctx, f.service, code, 0)

	access, err := f.svc.Refresh(ctx, f.refreshPrincipal(t, pair.RefreshToken), 0)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ap := f.accessPrincipal(t, access)
	if ap.User != f.user || ap.Service.ID != f.service {
		t.Fatalf("refreshed access bound to wrong pair: %+v", ap)
	}

	// El refresh no se rota: el crudo original sigue resolviendo y sirviendo.
	if _, err := f.svc.Refresh(ctx, f.refreshPrincipal(t, pair.RefreshToken), 0); err != nil {
		t.Fatalf("refresh token must remain usable: %v", err)
	}
}

// El par (service, user) viaja dentro del refresh: el access nuevo queda
// ligado al servicio del token, no a quien lo presenta.
func TestRefreshBindingComesFromToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.CreateService(ctx, "mail", "a mailer", f.user)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	otherRefresh, err := f.issuer.MakeOAuthRefreshToken(other, f.user)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	access, err := f.svc.Refresh(ctx, f.refreshPrincipal(t, otherRefresh), 0)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ap := f.accessPrincipal(t, access)
	if ap.Service.ID != other || ap.User != f.user {
		t.Fatalf("access must stay bound to the refresh's pair: %+v", ap)
	}

	// Un access o un código jamás resuelven a principal de refresh: el
	// endpoint de refresh se apoya en ese tipado.
	pairCode, _ := f.svc.MakeCode(ctx, f.user)
	pair, _ := f.svc.ExchangeCode(ctx, f.service, pairCode, 0)
	if p, err := f.resolver.Resolve(ctx, pair.AccessToken); err != nil {
		t.Fatalf("resolve access: %v", err)
	} else if _, ok := p.(token.OAuthRefreshPrincipal); ok {
		t.Fatal("access token must not resolve as refresh principal")
	}
}

func TestExchangeValidityPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, _ := f.svc.MakeCode(ctx, f.user)
	if _, err := f.svc.ExchangeCode(ctx, f.service, code, token.AccessTokenMaxValidity+time.Hour); !errors.Is(err, token.ErrValidityTooLong) {
		t.Fatalf("over-cap validity must fail whole operation, got %v", err)
	}

	// La operación falló completa: ni access ni refresh quedaron emitidos,
	// y el código sigue siendo canjeable dentro de sus 10 minutos.
	if _, err := f.svc.ExchangeCode(ctx, f.service, code, time.Hour); err != nil {
		t.Fatalf("code must still be redeemable: %v", err)
	}
}

func TestExchangeRejectsNonCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userTok, _ := f.issuer.MakeUserToken(f.user)
	if _, err := f.svc.ExchangeCode(ctx, f.service, userTok, 0); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("user token is not a code, got %v", err)
	}
	if _, err := f.svc.ExchangeCode(ctx, f.service, "garbage", 0); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("garbage must be invalid, got %v", err)
	}
}

// La rotación del secreto del servicio mata access y refresh ya emitidos.
func TestSecretRotationCutsDelegation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, _ := f.svc.MakeCode(ctx, f.user)
	pair, _ := f.svc.ExchangeCode(ctx, f.service, code, 0)

	time.Sleep(1100 * time.Millisecond) // granularidad de segundos del claim iat
	if ok, err := f.store.RevokeSecret(ctx, f.service); err != nil || !ok {
		t.Fatalf("revoke secret: ok=%v err=%v", ok, err)
	}

	if _, err := f.resolver.Resolve(ctx, pair.AccessToken); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("access must die with the secret, got %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, pair.RefreshToken); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("refresh must die with the secret, got %v", err)
	}
}
