// Package memory implementa core.Store en maps con mutex. Se usa en tests y
// en modo standalone (storage.driver: memory); la semántica es la misma que
// la del backend Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/ssohub/internal/store/core"
)

type userRow struct {
	info               core.UserInfo
	email              string
	passwordHash       string
	lastPasswordChange time.Time
}

type serviceRow struct {
	info              core.ServiceInfo
	secretRevokedTime time.Time
}

type Store struct {
	mu sync.Mutex

	users    map[core.UserID]*userRow
	services map[core.ServiceID]*serviceRow
	authz    map[core.AuthorizationID]*core.AuthorizationInfo

	// Índice por par (user, service): misma unicidad que la unique de Postgres.
	authzByPair map[[2]int]core.AuthorizationID

	nextUserID    core.UserID
	nextServiceID core.ServiceID
	nextAuthzID   core.AuthorizationID
}

func New() *Store {
	return &Store{
		users:         map[core.UserID]*userRow{},
		services:      map[core.ServiceID]*serviceRow{},
		authz:         map[core.AuthorizationID]*core.AuthorizationInfo{},
		authzByPair:   map[[2]int]core.AuthorizationID{},
		nextUserID:    1,
		nextServiceID: 1,
		nextAuthzID:   1,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

// ---------------------------------------------------------------- usuarios

func (s *Store) CreateUser(_ context.Context, username, email, passwordHash string) (core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.email == email || u.info.Username == username {
			return 0, core.ErrConflict
		}
	}

	id := s.nextUserID
	s.nextUserID++
	now := time.Now()
	s.users[id] = &userRow{
		info: core.UserInfo{
			ID:               id,
			Username:         username,
			RegistrationTime: now,
			Permission:       core.PermissionNormal,
		},
		email:              email,
		passwordHash:       passwordHash,
		lastPasswordChange: now,
	}
	return id, nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (*core.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	info := u.info
	return &info, nil
}

func (s *Store) GetUserFull(_ context.Context, id core.UserID) (*core.UserFull, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.UserFull{
		ID:               u.info.ID,
		Username:         u.info.Username,
		RegistrationTime: u.info.RegistrationTime,
		Permission:       u.info.Permission,
		Phone:            u.info.Phone,
		Email:            u.email,
	}, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.email == email {
			info := u.info
			return &info, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetUserWithLastPasswordChange(_ context.Context, id core.UserID) (*core.UserInfo, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, time.Time{}, core.ErrNotFound
	}
	info := u.info
	return &info, u.lastPasswordChange, nil
}

func (s *Store) GetPasswordHash(_ context.Context, id core.UserID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return u.passwordHash, nil
}

func (s *Store) SetPassword(_ context.Context, id core.UserID, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	u.passwordHash = passwordHash
	u.lastPasswordChange = time.Now()
	return true, nil
}

func (s *Store) SetPermission(_ context.Context, id core.UserID, p core.Permission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	u.info.Permission = p
	return true, nil
}

// ---------------------------------------------------------------- servicios

func (s *Store) CreateService(_ context.Context, name, description string, owner core.UserID) (core.ServiceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, svc := range s.services {
		if svc.info.Name == name {
			return 0, core.ErrConflict
		}
	}

	id := s.nextServiceID
	s.nextServiceID++
	s.services[id] = &serviceRow{
		info: core.ServiceInfo{
			ID:                  id,
			Name:                name,
			Description:         description,
			Owner:               owner,
			Status:              core.ServicePending,
			Unauthorized:        core.ServicePermissionNone,
			Authorized:          core.ServicePermissionNone,
			CancelAuthorization: core.ServicePermissionNone,
		},
		secretRevokedTime: time.Now(),
	}
	return id, nil
}

func (s *Store) GetService(_ context.Context, id core.ServiceID) (*core.ServiceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	info := svc.info
	return &info, nil
}

func (s *Store) GetServiceByName(_ context.Context, name string) (*core.ServiceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, svc := range s.services {
		if svc.info.Name == name {
			info := svc.info
			return &info, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetServiceWithSecretRevokedTime(_ context.Context, id core.ServiceID) (*core.ServiceInfo, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, time.Time{}, core.ErrNotFound
	}
	info := svc.info
	return &info, svc.secretRevokedTime, nil
}

func (s *Store) ListServices(_ context.Context, viewer *core.UserInfo, owner *core.UserID, status *core.ServiceStatus, begin int64, count int) (core.Slice[core.ServiceInfo], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin := viewer != nil && viewer.Permission.HasAdmin()

	var list []core.ServiceInfo
	for _, svc := range s.services {
		info := svc.info
		if int64(info.ID) <= begin {
			continue
		}
		if owner != nil && info.Owner != *owner {
			continue
		}
		if status != nil && info.Status != *status {
			continue
		}
		if !admin {
			own := viewer != nil && info.Owner == viewer.ID
			if info.Status != core.ServiceNormal && !own {
				continue
			}
		}
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if len(list) > count {
		list = list[:count]
	}
	return core.NewSlice(list, begin, count), nil
}

func (s *Store) UpdateService(_ context.Context, svc *core.ServiceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.services[svc.ID]
	if !ok {
		return core.ErrNotFound
	}
	row.info = *svc
	return nil
}

func (s *Store) RevokeSecret(_ context.Context, id core.ServiceID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return false, nil
	}
	svc.secretRevokedTime = time.Now()
	return true, nil
}

// ------------------------------------------------------------ autorizaciones

func (s *Store) Grant(_ context.Context, user core.UserID, service core.ServiceID) (core.AuthorizationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := [2]int{int(user), int(service)}
	if id, ok := s.authzByPair[pair]; ok {
		a := s.authz[id]
		a.Cancelled = false
		a.GrantedAt = time.Now()
		return id, nil
	}

	id := s.nextAuthzID
	s.nextAuthzID++
	s.authz[id] = &core.AuthorizationInfo{
		ID:        id,
		User:      user,
		Service:   service,
		GrantedAt: time.Now(),
	}
	s.authzByPair[pair] = id
	return id, nil
}

func (s *Store) RevokeByID(_ context.Context, id core.AuthorizationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.authz[id]
	if !ok {
		return false, nil
	}
	a.Cancelled = true
	return true, nil
}

func (s *Store) Revoke(_ context.Context, user core.UserID, service core.ServiceID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.authzByPair[[2]int{int(user), int(service)}]
	if !ok {
		return false, nil
	}
	s.authz[id].Cancelled = true
	return true, nil
}

func (s *Store) GetAuthorization(_ context.Context, id core.AuthorizationID) (*core.AuthorizationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.authz[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *Store) GetAuthorizationFor(_ context.Context, user core.UserID, service core.ServiceID) (*core.AuthorizationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.authzByPair[[2]int{int(user), int(service)}]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *s.authz[id]
	return &out, nil
}

func (s *Store) ListByUser(_ context.Context, user core.UserID, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	return s.listAuthz(func(a *core.AuthorizationInfo) bool {
		return a.User == user && !a.Cancelled
	}, begin, count)
}

func (s *Store) ListByService(_ context.Context, service core.ServiceID, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	return s.listAuthz(func(a *core.AuthorizationInfo) bool {
		return a.Service == service
	}, begin, count)
}

func (s *Store) listAuthz(match func(*core.AuthorizationInfo) bool, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []core.AuthorizationInfo
	for _, a := range s.authz {
		if int64(a.ID) <= begin {
			continue
		}
		if match(a) {
			list = append(list, *a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if len(list) > count {
		list = list[:count]
	}
	return core.NewSlice(list, begin, count), nil
}
