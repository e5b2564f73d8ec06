package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ssohub/internal/cache"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/rate"
	"github.com/dropDatabas3/ssohub/internal/security/password"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/store/memory"
	"github.com/dropDatabas3/ssohub/internal/token"
)

type env struct {
	t      *testing.T
	store  *memory.Store
	server *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.New()
	codec := token.NewCodec("router-test-key", "ssohub")
	issuer := token.NewIssuer(codec)
	resolver := token.NewResolver(codec, store)
	oauthSvc := oauth.New(store, issuer, resolver, cache.NewMemory("t", 0))

	router := NewRouter(Deps{
		Store:    store,
		Issuer:   issuer,
		Resolver: resolver,
		OAuth:    oauthSvc,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{t: t, store: store, server: srv}
}

func (e *env) createUser(username, email, pass string) core.UserID {
	e.t.Helper()
	hash, err := password.Hash(pass)
	require.NoError(e.t, err)
	id, err := e.store.CreateUser(context.Background(), username, email, hash)
	require.NoError(e.t, err)
	return id
}

// do ejecuta un request JSON con bearer opcional y decodifica en out si no es nil.
func (e *env) do(method, path, bearer string, body, out any) int {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(e.t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *env) login(user, pass string) string {
	e.t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	status := e.do("POST", "/v1/auth/login", "", map[string]string{"user": user, "password": pass}, &out)
	require.Equal(e.t, http.StatusOK, status)
	require.NotEmpty(e.t, out.Token)
	return out.Token
}

func TestLoginAndMe(t *testing.T) {
	e := newEnv(t)
	id := e.createUser("alice", "alice@example.com", "s3cret")

	tok := e.login("alice@example.com", "s3cret")

	var me core.UserFull
	status := e.do("GET", "/v1/auth/me", tok, nil, &me)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, id, me.ID)
	require.Equal(t, "alice@example.com", me.Email)

	// También por id numérico.
	tok2 := e.login(fmt.Sprintf("%d", id), "s3cret")
	require.NotEmpty(t, tok2)
}

func TestLoginRejections(t *testing.T) {
	e := newEnv(t)
	id := e.createUser("alice", "alice@example.com", "s3cret")

	status := e.do("POST", "/v1/auth/login", "", map[string]string{"user": "alice@example.com", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status = e.do("POST", "/v1/auth/login", "", map[string]string{"user": "ghost@example.com", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// Baneado: mismas credenciales válidas, misma respuesta que inválidas.
	_, err := e.store.SetPermission(context.Background(), id, core.PermissionBanned)
	require.NoError(t, err)
	status = e.do("POST", "/v1/auth/login", "", map[string]string{"user": "alice@example.com", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestChangePasswordInvalidatesOldToken(t *testing.T) {
	e := newEnv(t)
	e.createUser("alice", "alice@example.com", "s3cret")
	oldTok := e.login("alice@example.com", "s3cret")

	// Esperar al próximo segundo: iat tiene granularidad de segundos y el
	// cambio debe quedar estrictamente después de la emisión.
	waitNextSecond()

	var out struct {
		Token string `json:"token"`
	}
	status := e.do("POST", "/v1/auth/changePassword", oldTok,
		map[string]string{"oldPassword": "s3cret", "newPassword": "n3w-pass"}, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out.Token)

	// El token viejo murió con el cambio; el nuevo sirve.
	require.Equal(t, http.StatusUnauthorized, e.do("GET", "/v1/auth/me", oldTok, nil, nil))
	require.Equal(t, http.StatusOK, e.do("GET", "/v1/auth/me", out.Token, nil, nil))

	// Y el password nuevo loguea.
	e.login("alice@example.com", "n3w-pass")
}

func TestServiceLifecycleAndDelegation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createUser("owner", "owner@example.com", "ownerpw")
	e.createUser("alice", "alice@example.com", "alicepw")
	admin := e.createUser("root", "root@example.com", "rootpw")
	_, err := e.store.SetPermission(ctx, admin, core.PermissionRoot)
	require.NoError(t, err)

	ownerTok := e.login("owner@example.com", "ownerpw")
	aliceTok := e.login("alice@example.com", "alicepw")
	adminTok := e.login("root@example.com", "rootpw")

	// El dueño registra el servicio; nace PENDING.
	var created struct {
		ID core.ServiceID `json:"id"`
	}
	status := e.do("POST", "/v1/service/", ownerTok,
		map[string]string{"name": "calendar", "description": "a calendar"}, &created)
	require.Equal(t, http.StatusCreated, status)

	// PENDING: un tercero no lo ve ni puede autorizarlo.
	require.Equal(t, http.StatusNotFound,
		e.do("GET", fmt.Sprintf("/v1/service/%d", created.ID), aliceTok, nil, nil))
	require.Equal(t, http.StatusNotFound,
		e.do("POST", "/v1/authorization/", aliceTok, map[string]any{"service": created.ID}, nil))

	// El admin lo aprueba y configura los niveles.
	normal := core.ServiceNormal
	all := core.ServicePermissionAll
	basic := core.ServicePermissionBasic
	status = e.do("PUT", fmt.Sprintf("/v1/service/%d", created.ID), adminTok, map[string]any{
		"status":              normal,
		"authorized":          all,
		"cancelAuthorization": basic,
	}, nil)
	require.Equal(t, http.StatusOK, status)

	// Solo el dueño obtiene el secreto.
	require.Equal(t, http.StatusForbidden,
		e.do("GET", fmt.Sprintf("/v1/service/%d/secret", created.ID), aliceTok, nil, nil))
	var secret struct {
		Secret string `json:"secret"`
	}
	status = e.do("GET", fmt.Sprintf("/v1/service/%d/secret", created.ID), ownerTok, nil, &secret)
	require.Equal(t, http.StatusOK, status)

	// La usuaria autoriza y pide un código.
	var grant struct {
		ID     core.AuthorizationID     `json:"id"`
		Status core.AuthorizationStatus `json:"status"`
	}
	status = e.do("POST", "/v1/authorization/", aliceTok, map[string]any{"service": created.ID}, &grant)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, core.StatusAuthorized, grant.Status)

	var code struct {
		Code string `json:"code"`
	}
	status = e.do("GET", "/v1/authorization/code", aliceTok, nil, &code)
	require.Equal(t, http.StatusOK, status)

	// El servicio canjea el código con su secreto.
	var pair oauth.TokenPair
	status = e.do("POST", "/serviceApi/accessToken", secret.Secret, map[string]any{"code": code.Code}, &pair)
	require.Equal(t, http.StatusOK, status)

	// userInfo con el access token: grant activo → proyección completa.
	var full core.UserFull
	status = e.do("GET", "/serviceApi/userInfo", pair.AccessToken, nil, &full)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice@example.com", full.Email)
	require.Equal(t, "alice", full.Username)

	// La usuaria cancela: el nivel pasa a cancelAuthorization (BASIC).
	require.Equal(t, http.StatusNoContent,
		e.do("DELETE", fmt.Sprintf("/v1/authorization/%d", grant.ID), aliceTok, nil, nil))

	// status autentica con el access token mismo: el par sale del token.
	var st struct {
		Status core.AuthorizationStatus `json:"status"`
	}
	status = e.do("GET", "/serviceApi/status", pair.AccessToken, nil, &st)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, core.StatusCanceled, st.Status)

	var basicInfo core.BasicUserInfo
	status = e.do("GET", "/serviceApi/userInfo", pair.AccessToken, nil, &basicInfo)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice", basicInfo.Username)

	// refresh sigue funcionando tras la cancelación (delegación ≠ grant).
	// El bearer es el propio refresh token y el body es opcional.
	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	status = e.do("POST", "/serviceApi/refreshToken", pair.RefreshToken, nil, &refreshed)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, refreshed.AccessToken)

	// Rotar el secreto mata el access/refresh emitidos.
	waitNextSecond()
	require.Equal(t, http.StatusNoContent,
		e.do("POST", fmt.Sprintf("/v1/service/%d/rotateSecret", created.ID), ownerTok, nil, nil))
	require.Equal(t, http.StatusUnauthorized,
		e.do("GET", "/serviceApi/userInfo", pair.AccessToken, nil, nil))
	require.Equal(t, http.StatusUnauthorized,
		e.do("POST", "/serviceApi/refreshToken", pair.RefreshToken, nil, nil))
}

func TestValidityPolicyOverHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	owner := e.createUser("owner", "owner@example.com", "ownerpw")
	svcID, err := e.store.CreateService(ctx, "calendar", "", owner)
	require.NoError(t, err)
	svc, _ := e.store.GetService(ctx, svcID)
	svc.Status = core.ServiceNormal
	require.NoError(t, e.store.UpdateService(ctx, svc))

	ownerTok := e.login("owner@example.com", "ownerpw")
	var secret struct {
		Secret string `json:"secret"`
	}
	require.Equal(t, http.StatusOK,
		e.do("GET", fmt.Sprintf("/v1/service/%d/secret", svcID), ownerTok, nil, &secret))

	var code struct {
		Code string `json:"code"`
	}
	require.Equal(t, http.StatusOK, e.do("GET", "/v1/authorization/code", ownerTok, nil, &code))

	// 31 días en segundos: por encima del máximo → 400, nunca se recorta.
	over := int64(31 * 24 * 3600)
	status := e.do("POST", "/serviceApi/accessToken", secret.Secret,
		map[string]any{"code": code.Code, "validity": over}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	// Dentro del máximo funciona, y el código sobrevivió al intento fallido.
	var pair oauth.TokenPair
	status = e.do("POST", "/serviceApi/accessToken", secret.Secret,
		map[string]any{"code": code.Code, "validity": int64(3600)}, &pair)
	require.Equal(t, http.StatusOK, status)
}

func TestServiceApiRejectsUserTokens(t *testing.T) {
	e := newEnv(t)
	e.createUser("alice", "alice@example.com", "alicepw")
	aliceTok := e.login("alice@example.com", "alicepw")

	// Un token USER no es credencial de servicio ni access token.
	require.Equal(t, http.StatusUnauthorized,
		e.do("POST", "/serviceApi/accessToken", aliceTok, map[string]any{"user": 1}, nil))
	require.Equal(t, http.StatusUnauthorized,
		e.do("GET", "/serviceApi/userInfo", aliceTok, nil, nil))
	require.Equal(t, http.StatusUnauthorized,
		e.do("GET", "/serviceApi/status", aliceTok, nil, nil))

	// Y sin bearer, 401 uniforme.
	require.Equal(t, http.StatusUnauthorized, e.do("GET", "/v1/auth/me", "", nil, nil))
}

// status y refreshToken autentican con los tokens de la delegación misma:
// el access para status, el refresh para refreshToken. La credencial del
// servicio solo sirve para accessToken.
func TestDelegationEndpointsAuthenticateWithDelegationTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	owner := e.createUser("owner", "owner@example.com", "ownerpw")
	svcID, err := e.store.CreateService(ctx, "calendar", "", owner)
	require.NoError(t, err)
	svc, _ := e.store.GetService(ctx, svcID)
	svc.Status = core.ServiceNormal
	require.NoError(t, e.store.UpdateService(ctx, svc))

	ownerTok := e.login("owner@example.com", "ownerpw")
	var secret struct {
		Secret string `json:"secret"`
	}
	require.Equal(t, http.StatusOK,
		e.do("GET", fmt.Sprintf("/v1/service/%d/secret", svcID), ownerTok, nil, &secret))
	var code struct {
		Code string `json:"code"`
	}
	require.Equal(t, http.StatusOK, e.do("GET", "/v1/authorization/code", ownerTok, nil, &code))

	var pair oauth.TokenPair
	require.Equal(t, http.StatusOK,
		e.do("POST", "/serviceApi/accessToken", secret.Secret, map[string]any{"code": code.Code}, &pair))

	// status: el access token entra; secreto del servicio y token USER no.
	var st struct {
		Status core.AuthorizationStatus `json:"status"`
	}
	require.Equal(t, http.StatusOK, e.do("GET", "/serviceApi/status", pair.AccessToken, nil, &st))
	require.Equal(t, core.StatusUnauthorized, st.Status)
	require.Equal(t, http.StatusUnauthorized, e.do("GET", "/serviceApi/status", secret.Secret, nil, nil))
	require.Equal(t, http.StatusUnauthorized, e.do("GET", "/serviceApi/status", ownerTok, nil, nil))

	// refreshToken: el refresh entra sin body; access y secreto no.
	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	require.Equal(t, http.StatusOK,
		e.do("POST", "/serviceApi/refreshToken", pair.RefreshToken, nil, &refreshed))
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, http.StatusUnauthorized,
		e.do("POST", "/serviceApi/refreshToken", pair.AccessToken, nil, nil))
	require.Equal(t, http.StatusUnauthorized,
		e.do("POST", "/serviceApi/refreshToken", secret.Secret, nil, nil))

	// El access recién refrescado conserva el par original.
	require.Equal(t, http.StatusOK, e.do("GET", "/serviceApi/status", refreshed.AccessToken, nil, &st))
	require.Equal(t, core.StatusUnauthorized, st.Status)
}

func TestLoginRateLimit(t *testing.T) {
	store := memory.New()
	codec := token.NewCodec("rl-test-key", "ssohub")
	issuer := token.NewIssuer(codec)
	resolver := token.NewResolver(codec, store)

	router := NewRouter(Deps{
		Store:        store,
		Issuer:       issuer,
		Resolver:     resolver,
		OAuth:        oauth.New(store, issuer, resolver, nil),
		LoginLimiter: rate.NewMemoryLimiter(3, time.Hour),
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	body := []byte(`{"user":"ghost@example.com","password":"x"}`)
	var last int
	for i := 0; i < 4; i++ {
		resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		last = resp.StatusCode
		resp.Body.Close()
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

// waitNextSecond duerme hasta el próximo segundo de reloj: los timestamps de
// revocación solo distinguen emisiones de segundos distintos.
func waitNextSecond() {
	now := time.Now()
	time.Sleep(now.Truncate(time.Second).Add(time.Second + 50*time.Millisecond).Sub(now))
}
