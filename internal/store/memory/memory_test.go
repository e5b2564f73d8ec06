package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/ssohub/internal/store/core"
)

func seed(t *testing.T, s *Store) (core.UserID, core.ServiceID) {
	t.Helper()
	ctx := context.Background()
	user, err := s.CreateUser(ctx, "alice", "alice@example.com", "$hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	service, err := s.CreateService(ctx, "calendar", "a calendar", user)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return user, service
}

func TestGrantIsIdempotent(t *testing.T) {
	s := New()
	user, service := seed(t, s)
	ctx := context.Background()

	first, err := s.Grant(ctx, user, service)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := s.Grant(ctx, user, service)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if first != second {
		t.Fatalf("grant must reuse the row: %d vs %d", first, second)
	}

	a, err := s.GetAuthorizationFor(ctx, user, service)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Status() != core.StatusAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s", a.Status())
	}
}

func TestRevokeThenGrantKeepsID(t *testing.T) {
	s := New()
	user, service := seed(t, s)
	ctx := context.Background()

	id, _ := s.Grant(ctx, user, service)
	if ok, err := s.Revoke(ctx, user, service); err != nil || !ok {
		t.Fatalf("revoke: ok=%v err=%v", ok, err)
	}

	a, _ := s.GetAuthorizationFor(ctx, user, service)
	if a.Status() != core.StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", a.Status())
	}

	again, err := s.Grant(ctx, user, service)
	if err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	if again != id {
		t.Fatalf("re-grant must reactivate the same row: %d vs %d", again, id)
	}
	a, _ = s.GetAuthorizationFor(ctx, user, service)
	if a.Status() != core.StatusAuthorized || a.Cancelled {
		t.Fatalf("row not reactivated: %+v", a)
	}
}

func TestStatusWithoutRowIsUnauthorized(t *testing.T) {
	s := New()
	user, service := seed(t, s)

	_, err := s.GetAuthorizationFor(context.Background(), user, service)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var missing *core.AuthorizationInfo
	if missing.Status() != core.StatusUnauthorized {
		t.Fatalf("nil row must read as UNAUTHORIZED")
	}
}

func TestListByUserHidesCancelled(t *testing.T) {
	s := New()
	user, service := seed(t, s)
	ctx := context.Background()

	other, _ := s.CreateService(ctx, "mail", "a mailer", user)
	s.Grant(ctx, user, service)
	s.Grant(ctx, user, other)
	s.Revoke(ctx, user, service)

	mine, err := s.ListByUser(ctx, user, 0, 10)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine.List) != 1 || mine.List[0].Service != other {
		t.Fatalf("cancelled rows must be hidden from the user: %+v", mine.List)
	}

	audit, err := s.ListByService(ctx, service, 0, 10)
	if err != nil {
		t.Fatalf("list by service: %v", err)
	}
	if len(audit.List) != 1 || !audit.List[0].Cancelled {
		t.Fatalf("service audit must include cancelled rows: %+v", audit.List)
	}
}

func TestSetPasswordBumpsTimestamp(t *testing.T) {
	s := New()
	user, _ := seed(t, s)
	ctx := context.Background()

	_, before, err := s.GetUserWithLastPasswordChange(ctx, user)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if ok, err := s.SetPassword(ctx, user, "$newhash"); err != nil || !ok {
		t.Fatalf("set password: ok=%v err=%v", ok, err)
	}
	_, after, _ := s.GetUserWithLastPasswordChange(ctx, user)
	if !after.After(before) {
		t.Fatalf("last password change must advance: %v -> %v", before, after)
	}
	if h, _ := s.GetPasswordHash(ctx, user); h != "$newhash" {
		t.Fatalf("hash not replaced: %s", h)
	}
}

func TestRevokeSecretAdvancesTime(t *testing.T) {
	s := New()
	_, service := seed(t, s)
	ctx := context.Background()

	_, before, _ := s.GetServiceWithSecretRevokedTime(ctx, service)
	time.Sleep(5 * time.Millisecond)

	if ok, err := s.RevokeSecret(ctx, service); err != nil || !ok {
		t.Fatalf("revoke secret: ok=%v err=%v", ok, err)
	}
	_, after, _ := s.GetServiceWithSecretRevokedTime(ctx, service)
	if !after.After(before) {
		t.Fatalf("secret revoked time must advance: %v -> %v", before, after)
	}
}

func TestDuplicatesAreConflicts(t *testing.T) {
	s := New()
	user, _ := seed(t, s)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice2", "ALICE@example.com", "$h"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate email must conflict, got %v", err)
	}
	if _, err := s.CreateService(ctx, "calendar", "again", user); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate service name must conflict, got %v", err)
	}
}

func TestListServicesVisibility(t *testing.T) {
	s := New()
	owner, service := seed(t, s)
	ctx := context.Background()

	stranger, _ := s.CreateUser(ctx, "bob", "bob@example.com", "$h")
	admin, _ := s.CreateUser(ctx, "root", "root@example.com", "$h")
	if ok, err := s.SetPermission(ctx, admin, core.PermissionRoot); err != nil || !ok {
		t.Fatalf("set permission: ok=%v err=%v", ok, err)
	}

	ownerInfo, _ := s.GetUser(ctx, owner)
	strangerInfo, _ := s.GetUser(ctx, stranger)
	adminInfo, _ := s.GetUser(ctx, admin)

	// El servicio recién creado está PENDING: solo dueño y admin lo ven.
	if page, _ := s.ListServices(ctx, strangerInfo, nil, nil, 0, 10); len(page.List) != 0 {
		t.Fatalf("stranger must not see pending services: %+v", page.List)
	}
	if page, _ := s.ListServices(ctx, ownerInfo, nil, nil, 0, 10); len(page.List) != 1 {
		t.Fatalf("owner must see own pending service")
	}
	if page, _ := s.ListServices(ctx, adminInfo, nil, nil, 0, 10); len(page.List) != 1 {
		t.Fatalf("admin must see everything")
	}

	// Aprobado pasa a ser visible para todos.
	svc, _ := s.GetService(ctx, service)
	svc.Status = core.ServiceNormal
	if err := s.UpdateService(ctx, svc); err != nil {
		t.Fatalf("update: %v", err)
	}
	if page, _ := s.ListServices(ctx, strangerInfo, nil, nil, 0, 10); len(page.List) != 1 {
		t.Fatalf("stranger must see NORMAL services")
	}
}
