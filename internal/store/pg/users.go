package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/ssohub/internal/store/core"
)

const userCols = `id, username, registration_time, permission, phone`

func scanUser(row pgx.Row) (*core.UserInfo, error) {
	var u core.UserInfo
	var phone *string
	if err := row.Scan(&u.ID, &u.Username, &u.RegistrationTime, &u.Permission, &phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if phone != nil {
		u.Phone = *phone
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (core.UserID, error) {
	const q = `
INSERT INTO sso_user (username, email, password_hash, permission, registration_time, last_password_change)
VALUES ($1, LOWER($2), $3, 'NORMAL', now(), now())
RETURNING id`
	var id core.UserID
	if err := s.pool.QueryRow(ctx, q, username, email, passwordHash).Scan(&id); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, core.ErrConflict
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (*core.UserInfo, error) {
	const q = `SELECT ` + userCols + ` FROM sso_user WHERE id = $1`
	return scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetUserFull(ctx context.Context, id core.UserID) (*core.UserFull, error) {
	const q = `SELECT id, username, registration_time, permission, phone, email FROM sso_user WHERE id = $1`
	var u core.UserFull
	var phone *string
	if err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.RegistrationTime, &u.Permission, &phone, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if phone != nil {
		u.Phone = *phone
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.UserInfo, error) {
	const q = `SELECT ` + userCols + ` FROM sso_user WHERE LOWER(email) = LOWER($1)`
	return scanUser(s.pool.QueryRow(ctx, q, email))
}

func (s *Store) GetUserWithLastPasswordChange(ctx context.Context, id core.UserID) (*core.UserInfo, time.Time, error) {
	const q = `SELECT ` + userCols + `, last_password_change FROM sso_user WHERE id = $1`
	var u core.UserInfo
	var phone *string
	var lastChange time.Time
	if err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.RegistrationTime, &u.Permission, &phone, &lastChange); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, core.ErrNotFound
		}
		return nil, time.Time{}, err
	}
	if phone != nil {
		u.Phone = *phone
	}
	return &u, lastChange, nil
}

func (s *Store) GetPasswordHash(ctx context.Context, id core.UserID) (string, error) {
	const q = `SELECT password_hash FROM sso_user WHERE id = $1`
	var hash string
	if err := s.pool.QueryRow(ctx, q, id).Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", core.ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

func (s *Store) SetPermission(ctx context.Context, id core.UserID, p core.Permission) (bool, error) {
	const q = `UPDATE sso_user SET permission = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, p)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetPassword reemplaza el hash y avanza last_password_change en la misma
// sentencia: la invalidación de tokens viejos es atómica con el cambio.
func (s *Store) SetPassword(ctx context.Context, id core.UserID, passwordHash string) (bool, error) {
	const q = `UPDATE sso_user SET password_hash = $2, last_password_change = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
