package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/ssohub/internal/store/core"
)

const authzCols = `id, user_id, service_id, granted_at, cancelled`

func scanAuthz(row pgx.Row) (*core.AuthorizationInfo, error) {
	var a core.AuthorizationInfo
	if err := row.Scan(&a.ID, &a.User, &a.Service, &a.GrantedAt, &a.Cancelled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Grant es el upsert atómico sobre la unique (user_id, service_id): reactiva
// la fila si existía (cancelada o no) o la crea. Dos grants concurrentes del
// mismo par convergen a la misma fila, el id surrogate nunca cambia.
func (s *Store) Grant(ctx context.Context, user core.UserID, service core.ServiceID) (core.AuthorizationID, error) {
	const q = `
INSERT INTO sso_authorization (user_id, service_id, granted_at, cancelled)
VALUES ($1, $2, now(), false)
ON CONFLICT (user_id, service_id)
DO UPDATE SET cancelled = false, granted_at = now()
RETURNING id`
	var id core.AuthorizationID
	if err := s.pool.QueryRow(ctx, q, user, service).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) RevokeByID(ctx context.Context, id core.AuthorizationID) (bool, error) {
	const q = `UPDATE sso_authorization SET cancelled = true WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Revoke(ctx context.Context, user core.UserID, service core.ServiceID) (bool, error) {
	const q = `UPDATE sso_authorization SET cancelled = true WHERE user_id = $1 AND service_id = $2`
	tag, err := s.pool.Exec(ctx, q, user, service)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetAuthorization(ctx context.Context, id core.AuthorizationID) (*core.AuthorizationInfo, error) {
	const q = `SELECT ` + authzCols + ` FROM sso_authorization WHERE id = $1`
	return scanAuthz(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetAuthorizationFor(ctx context.Context, user core.UserID, service core.ServiceID) (*core.AuthorizationInfo, error) {
	const q = `SELECT ` + authzCols + ` FROM sso_authorization WHERE user_id = $1 AND service_id = $2`
	return scanAuthz(s.pool.QueryRow(ctx, q, user, service))
}

// ListByUser oculta las canceladas: es el listado que el propio usuario ve.
func (s *Store) ListByUser(ctx context.Context, user core.UserID, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	const q = `
SELECT ` + authzCols + ` FROM sso_authorization
WHERE user_id = $1 AND cancelled = false AND id > $2
ORDER BY id LIMIT $3`
	return s.listAuthz(ctx, q, user, begin, count)
}

// ListByService incluye canceladas: vista de auditoría para el servicio.
func (s *Store) ListByService(ctx context.Context, service core.ServiceID, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	const q = `
SELECT ` + authzCols + ` FROM sso_authorization
WHERE service_id = $1 AND id > $2
ORDER BY id LIMIT $3`
	return s.listAuthz(ctx, q, service, begin, count)
}

func (s *Store) listAuthz(ctx context.Context, q string, key any, begin int64, count int) (core.Slice[core.AuthorizationInfo], error) {
	rows, err := s.pool.Query(ctx, q, key, begin, count)
	if err != nil {
		return core.Slice[core.AuthorizationInfo]{}, err
	}
	defer rows.Close()

	var list []core.AuthorizationInfo
	for rows.Next() {
		a, err := scanAuthz(rows)
		if err != nil {
			return core.Slice[core.AuthorizationInfo]{}, err
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return core.Slice[core.AuthorizationInfo]{}, err
	}
	return core.NewSlice(list, begin, count), nil
}
