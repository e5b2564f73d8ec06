// Package core define los tipos de dominio y los contratos de repositorio.
// No depende de ningún driver: los backends viven en store/pg y store/memory.
package core

import "time"

// UserID identifica a un usuario.
type UserID int

// ServiceID identifica a un servicio de terceros registrado.
type ServiceID int

// AuthorizationID identifica una relación de autorización usuario↔servicio.
// Es una clave surrogate inmutable asignada en el primer grant.
type AuthorizationID int

// Permission es el nivel administrativo de un usuario.
type Permission string

const (
	PermissionBanned Permission = "BANNED"
	PermissionNormal Permission = "NORMAL"
	PermissionAdmin  Permission = "ADMIN"
	PermissionRoot   Permission = "ROOT"
)

// HasAdmin indica si el usuario tiene privilegios administrativos.
func (p Permission) HasAdmin() bool {
	return p == PermissionAdmin || p == PermissionRoot
}

// ServiceStatus es el estado de revisión de un servicio.
type ServiceStatus string

const (
	ServiceBanned  ServiceStatus = "BANNED"
	ServicePending ServiceStatus = "PENDING"
	ServiceNormal  ServiceStatus = "NORMAL"
)

// ServicePermission es el nivel de datos de usuario que un servicio puede leer.
type ServicePermission string

const (
	ServicePermissionNone  ServicePermission = "NONE"
	ServicePermissionBasic ServicePermission = "BASIC"
	ServicePermissionAll   ServicePermission = "ALL"
)

// AuthorizationStatus es el estado lógico de tres valores de una autorización.
type AuthorizationStatus string

const (
	StatusUnauthorized AuthorizationStatus = "UNAUTHORIZED"
	StatusAuthorized   AuthorizationStatus = "AUTHORIZED"
	StatusCanceled     AuthorizationStatus = "CANCELED"
)

// UserInfo es la fila básica de usuario.
type UserInfo struct {
	ID               UserID     `json:"id"`
	Username         string     `json:"username"`
	RegistrationTime time.Time  `json:"registrationTime"`
	Permission       Permission `json:"permission"`
	Phone            string     `json:"phone,omitempty"`
}

// UserFull es la proyección completa expuesta a servicios con permiso ALL.
type UserFull struct {
	ID               UserID     `json:"id"`
	Username         string     `json:"username"`
	RegistrationTime time.Time  `json:"registrationTime"`
	Permission       Permission `json:"permission"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email"`
}

// BasicUserInfo es la proyección restringida para permiso BASIC.
type BasicUserInfo struct {
	ID               UserID    `json:"id"`
	Username         string    `json:"username"`
	RegistrationTime time.Time `json:"registrationTime"`
	Email            string    `json:"email"`
}

// ToBasic reduce la proyección completa a la básica.
func (u UserFull) ToBasic() BasicUserInfo {
	return BasicUserInfo{
		ID:               u.ID,
		Username:         u.Username,
		RegistrationTime: u.RegistrationTime,
		Email:            u.Email,
	}
}

// ServiceInfo es la fila completa de un servicio. Los campos Pending* guardan
// la edición del dueño a la espera de revisión por un admin.
type ServiceInfo struct {
	ID          ServiceID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Owner       UserID        `json:"owner"`
	Status      ServiceStatus `json:"status"`

	// Niveles configurados por estado de autorización del usuario.
	Unauthorized        ServicePermission `json:"unauthorized"`
	Authorized          ServicePermission `json:"authorized"`
	CancelAuthorization ServicePermission `json:"cancelAuthorization"`

	PendingName                *string            `json:"pendingName,omitempty"`
	PendingDescription         *string            `json:"pendingDescription,omitempty"`
	PendingUnauthorized        *ServicePermission `json:"pendingUnauthorized,omitempty"`
	PendingAuthorized          *ServicePermission `json:"pendingAuthorized,omitempty"`
	PendingCancelAuthorization *ServicePermission `json:"pendingCancelAuthorization,omitempty"`
}

// BasicServiceInfo es lo que ve cualquiera que no sea dueño ni admin.
type BasicServiceInfo struct {
	ID          ServiceID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// ToBasic reduce la fila de servicio a su proyección pública.
func (s ServiceInfo) ToBasic() BasicServiceInfo {
	return BasicServiceInfo{ID: s.ID, Name: s.Name, Description: s.Description}
}

// TierFor devuelve el nivel de permiso configurado para un estado de
// autorización dado. Mapeo canónico: sin fila → unauthorized, fila vigente →
// authorized, fila cancelada → cancelAuthorization.
func (s ServiceInfo) TierFor(status AuthorizationStatus) ServicePermission {
	switch status {
	case StatusAuthorized:
		return s.Authorized
	case StatusCanceled:
		return s.CancelAuthorization
	default:
		return s.Unauthorized
	}
}

// AuthorizationInfo es la fila persistida de la relación usuario↔servicio.
// Nunca se borra: revocar solo marca Cancelled.
type AuthorizationInfo struct {
	ID        AuthorizationID `json:"id"`
	User      UserID          `json:"user"`
	Service   ServiceID       `json:"service"`
	GrantedAt time.Time       `json:"grantedAt"`
	Cancelled bool            `json:"cancelled"`
}

// Status deriva el estado lógico de la fila.
func (a *AuthorizationInfo) Status() AuthorizationStatus {
	if a == nil {
		return StatusUnauthorized
	}
	if a.Cancelled {
		return StatusCanceled
	}
	return StatusAuthorized
}

// Slice es una página de resultados.
type Slice[T any] struct {
	List  []T   `json:"list"`
	Begin int64 `json:"begin"`
	Count int   `json:"count"`
}

// NewSlice arma la página con los metadatos de paginación pedidos.
func NewSlice[T any](list []T, begin int64, count int) Slice[T] {
	if list == nil {
		list = []T{}
	}
	return Slice[T]{List: list, Begin: begin, Count: count}
}
