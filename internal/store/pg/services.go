package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/ssohub/internal/store/core"
)

const serviceCols = `id, name, description, owner_id, status,
	unauthorized, authorized, cancel_authorization,
	pending_name, pending_description, pending_unauthorized, pending_authorized, pending_cancel_authorization`

func scanService(row pgx.Row) (*core.ServiceInfo, error) {
	var svc core.ServiceInfo
	if err := row.Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.Owner, &svc.Status,
		&svc.Unauthorized, &svc.Authorized, &svc.CancelAuthorization,
		&svc.PendingName, &svc.PendingDescription,
		&svc.PendingUnauthorized, &svc.PendingAuthorized, &svc.PendingCancelAuthorization,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// CreateService registra un servicio en estado PENDING con los niveles de
// permiso en NONE: recién al aprobarlo un admin queda visible y utilizable.
func (s *Store) CreateService(ctx context.Context, name, description string, owner core.UserID) (core.ServiceID, error) {
	const q = `
INSERT INTO sso_service
	(name, description, owner_id, status, unauthorized, authorized, cancel_authorization, secret_revoked_time)
VALUES ($1, $2, $3, 'PENDING', 'NONE', 'NONE', 'NONE', now())
RETURNING id`
	var id core.ServiceID
	if err := s.pool.QueryRow(ctx, q, name, description, owner).Scan(&id); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, core.ErrConflict
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) GetService(ctx context.Context, id core.ServiceID) (*core.ServiceInfo, error) {
	const q = `SELECT ` + serviceCols + ` FROM sso_service WHERE id = $1`
	return scanService(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetServiceByName(ctx context.Context, name string) (*core.ServiceInfo, error) {
	const q = `SELECT ` + serviceCols + ` FROM sso_service WHERE name = $1`
	return scanService(s.pool.QueryRow(ctx, q, name))
}

func (s *Store) GetServiceWithSecretRevokedTime(ctx context.Context, id core.ServiceID) (*core.ServiceInfo, time.Time, error) {
	const q = `SELECT ` + serviceCols + `, secret_revoked_time FROM sso_service WHERE id = $1`
	var svc core.ServiceInfo
	var revoked time.Time
	if err := s.pool.QueryRow(ctx, q, id).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.Owner, &svc.Status,
		&svc.Unauthorized, &svc.Authorized, &svc.CancelAuthorization,
		&svc.PendingName, &svc.PendingDescription,
		&svc.PendingUnauthorized, &svc.PendingAuthorized, &svc.PendingCancelAuthorization,
		&revoked,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, core.ErrNotFound
		}
		return nil, time.Time{}, err
	}
	return &svc, revoked, nil
}

// ListServices arma el WHERE según filtros y visibilidad del viewer: los no
// admin solo ven servicios NORMAL o propios.
func (s *Store) ListServices(ctx context.Context, viewer *core.UserInfo, owner *core.UserID, status *core.ServiceStatus, begin int64, count int) (core.Slice[core.ServiceInfo], error) {
	q := `SELECT ` + serviceCols + ` FROM sso_service WHERE id > $1`
	args := []any{begin}

	if owner != nil {
		args = append(args, *owner)
		q += ` AND owner_id = $2`
	}
	if status != nil {
		args = append(args, *status)
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if viewer == nil || !viewer.Permission.HasAdmin() {
		if viewer != nil {
			args = append(args, viewer.ID)
			q += fmt.Sprintf(` AND (status = 'NORMAL' OR owner_id = $%d)`, len(args))
		} else {
			q += ` AND status = 'NORMAL'`
		}
	}

	args = append(args, count)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return core.Slice[core.ServiceInfo]{}, err
	}
	defer rows.Close()

	var list []core.ServiceInfo
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return core.Slice[core.ServiceInfo]{}, err
		}
		list = append(list, *svc)
	}
	if err := rows.Err(); err != nil {
		return core.Slice[core.ServiceInfo]{}, err
	}
	return core.NewSlice(list, begin, count), nil
}

func (s *Store) UpdateService(ctx context.Context, svc *core.ServiceInfo) error {
	const q = `
UPDATE sso_service SET
	name = $2, description = $3, status = $4,
	unauthorized = $5, authorized = $6, cancel_authorization = $7,
	pending_name = $8, pending_description = $9,
	pending_unauthorized = $10, pending_authorized = $11, pending_cancel_authorization = $12
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q,
		svc.ID, svc.Name, svc.Description, svc.Status,
		svc.Unauthorized, svc.Authorized, svc.CancelAuthorization,
		svc.PendingName, svc.PendingDescription,
		svc.PendingUnauthorized, svc.PendingAuthorized, svc.PendingCancelAuthorization,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) RevokeSecret(ctx context.Context, id core.ServiceID) (bool, error) {
	const q = `UPDATE sso_service SET secret_revoked_time = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
