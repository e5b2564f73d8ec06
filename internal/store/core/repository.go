package core

import (
	"context"
	"time"
)

// UserRepository expone las consultas de credenciales de usuario.
// El hashing del password ocurre fuera del repositorio: acá solo viajan hashes.
type UserRepository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (UserID, error)
	GetUser(ctx context.Context, id UserID) (*UserInfo, error)
	GetUserFull(ctx context.Context, id UserID) (*UserFull, error)
	GetUserByEmail(ctx context.Context, email string) (*UserInfo, error)

	// GetUserWithLastPasswordChange devuelve el usuario y su timestamp de
	// último cambio de password. Todo token USER emitido antes de ese
	// timestamp es inválido: la invalidación masiva es un bump de reloj,
	// no una blacklist.
	GetUserWithLastPasswordChange(ctx context.Context, id UserID) (*UserInfo, time.Time, error)

	GetPasswordHash(ctx context.Context, id UserID) (string, error)

	// SetPassword reemplaza el hash y avanza last_password_change a now().
	SetPassword(ctx context.Context, id UserID, passwordHash string) (bool, error)

	// SetPermission cambia el nivel administrativo (bootstrap del primer
	// admin vía ssoctl, bans).
	SetPermission(ctx context.Context, id UserID, p Permission) (bool, error)
}

// ServiceRepository expone el registro de servicios de terceros.
type ServiceRepository interface {
	CreateService(ctx context.Context, name, description string, owner UserID) (ServiceID, error)
	GetService(ctx context.Context, id ServiceID) (*ServiceInfo, error)
	GetServiceByName(ctx context.Context, name string) (*ServiceInfo, error)

	// GetServiceWithSecretRevokedTime devuelve el servicio y el timestamp de
	// la última rotación de secreto. Mismo patrón de revocación sin storage
	// que los usuarios: aplica a tokens SERVICE, ACCESS y REFRESH.
	GetServiceWithSecretRevokedTime(ctx context.Context, id ServiceID) (*ServiceInfo, time.Time, error)

	// ListServices filtra por visibilidad: un usuario común solo ve servicios
	// NORMAL o propios; un admin ve todo.
	ListServices(ctx context.Context, viewer *UserInfo, owner *UserID, status *ServiceStatus, begin int64, count int) (Slice[ServiceInfo], error)

	UpdateService(ctx context.Context, svc *ServiceInfo) error

	// RevokeSecret avanza secret_revoked_time a now(), invalidando de golpe
	// todos los tokens previamente emitidos para el servicio.
	RevokeSecret(ctx context.Context, id ServiceID) (bool, error)
}

// AuthorizationRepository persiste la relación de delegación usuario↔servicio.
type AuthorizationRepository interface {
	// Grant es un upsert idempotente sobre la clave (user, service): si la
	// fila existe (cancelada o no) la reactiva y refresca granted_at; si no,
	// la crea. Debe ser atómico a nivel storage: dos grants concurrentes del
	// mismo par no pueden producir dos filas.
	Grant(ctx context.Context, user UserID, service ServiceID) (AuthorizationID, error)

	// RevokeByID marca cancelled=true. Devuelve false si la fila no existe.
	RevokeByID(ctx context.Context, id AuthorizationID) (bool, error)
	Revoke(ctx context.Context, user UserID, service ServiceID) (bool, error)

	GetAuthorization(ctx context.Context, id AuthorizationID) (*AuthorizationInfo, error)
	GetAuthorizationFor(ctx context.Context, user UserID, service ServiceID) (*AuthorizationInfo, error)

	// ListByUser oculta las autorizaciones canceladas (listado propio del
	// usuario); ListByService las incluye (vista de auditoría del servicio).
	ListByUser(ctx context.Context, user UserID, begin int64, count int) (Slice[AuthorizationInfo], error)
	ListByService(ctx context.Context, service ServiceID, begin int64, count int) (Slice[AuthorizationInfo], error)
}

// Store agrupa los repositorios sobre un mismo backend.
type Store interface {
	UserRepository
	ServiceRepository
	AuthorizationRepository

	Ping(ctx context.Context) error
	Close()
}
