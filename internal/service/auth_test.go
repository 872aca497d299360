package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/repository"
)

func TestRegisterUser_Validation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Auth.Register(context.Background(), " ", "pass"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty username, got %v", err)
	}
	if _, err := f.svc.Auth.Register(context.Background(), "user", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Auth.Register(ctx, "login", "pass"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	_, err := f.svc.Auth.Register(ctx, "login", "other")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Auth.Register(ctx, "user", "correct")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if string(u.PasswordHash) == "correct" {
		t.Fatalf("password must be stored hashed")
	}

	id, err := f.svc.Auth.Authenticate(ctx, "user", "correct")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if id.UserID != u.ID || id.Role != model.RoleEmployee {
		t.Fatalf("unexpected identity %+v", id)
	}

	if _, err := f.svc.Auth.Authenticate(ctx, "user", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := f.svc.Auth.Authenticate(ctx, "nobody", "correct"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestResolveTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.tenant(t, OrganizationInput{})
	owner := model.Identity{UserID: f.owner.UserID, Role: model.RoleEmployee}

	tc, err := f.svc.Auth.ResolveTenant(ctx, owner, nil)
	if err != nil {
		t.Fatalf("ResolveTenant error: %v", err)
	}
	if tc != f.owner {
		t.Fatalf("got %+v, want %+v", tc, f.owner)
	}

	if _, err := f.svc.Auth.ResolveTenant(ctx, owner, &other.OrganizationID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign organization, got %v", err)
	}

	loner, err := f.svc.Auth.Register(ctx, "loner", "secret")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := f.svc.Auth.ResolveTenant(ctx, model.Identity{UserID: loner.ID}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without organization, got %v", err)
	}

	if _, err := f.svc.Auth.ResolveTenant(ctx, model.Identity{UserID: uuid.New()}, nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestResolveTenant_InactiveOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := model.Identity{UserID: uuid.New(), Role: model.RoleSuperAdmin}

	if _, err := f.svc.Tenants.SetStatus(ctx, admin, f.org.ID, model.OrganizationInactive); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	_, err := f.svc.Auth.ResolveTenant(ctx, model.Identity{UserID: f.owner.UserID}, &f.org.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for inactive organization, got %v", err)
	}
}

func TestResolveTenant_SuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := &model.User{ID: uuid.New(), Username: "root", Role: model.RoleSuperAdmin, IsActive: true}
	if err := f.repo.CreateUser(ctx, admin); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	id := model.Identity{UserID: admin.ID, Role: model.RoleSuperAdmin}

	tc, err := f.svc.Auth.ResolveTenant(ctx, id, &f.org.ID)
	if err != nil {
		t.Fatalf("ResolveTenant error: %v", err)
	}
	if tc.OrganizationID != f.org.ID || tc.Role != model.RoleSuperAdmin {
		t.Fatalf("unexpected tenant %+v", tc)
	}

	missing := uuid.New()
	if _, err := f.svc.Auth.ResolveTenant(ctx, id, &missing); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown organization, got %v", err)
	}
}

func TestEnsureSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.Auth.EnsureSuperAdmin(ctx, "root", "s3cret")
	if err != nil {
		t.Fatalf("EnsureSuperAdmin error: %v", err)
	}
	if admin.Role != model.RoleSuperAdmin {
		t.Fatalf("role = %s, want %s", admin.Role, model.RoleSuperAdmin)
	}

	again, err := f.svc.Auth.EnsureSuperAdmin(ctx, "root", "other")
	if err != nil {
		t.Fatalf("repeated EnsureSuperAdmin error: %v", err)
	}
	if again.ID != admin.ID {
		t.Fatalf("repeated call must return the same user")
	}

	id, err := f.svc.Auth.Authenticate(ctx, "root", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if id.Role != model.RoleSuperAdmin {
		t.Fatalf("login role = %s, want %s", id.Role, model.RoleSuperAdmin)
	}

	if _, err := f.svc.Auth.Register(ctx, "plain", "secret"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := f.svc.Auth.EnsureSuperAdmin(ctx, "plain", "secret"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for a taken employee login, got %v", err)
	}
	if _, err := f.svc.Auth.EnsureSuperAdmin(ctx, "", "secret"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty username, got %v", err)
	}
}

func TestCreateSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := model.Identity{UserID: f.owner.UserID, Role: model.RoleEmployee}

	if _, err := f.svc.Auth.CreateSuperAdmin(ctx, owner, "second", "secret"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a non-admin, got %v", err)
	}

	root, err := f.svc.Auth.EnsureSuperAdmin(ctx, "root", "s3cret")
	if err != nil {
		t.Fatalf("EnsureSuperAdmin error: %v", err)
	}
	admin := model.Identity{UserID: root.ID, Role: root.Role}

	u, err := f.svc.Auth.CreateSuperAdmin(ctx, admin, "second", "secret")
	if err != nil {
		t.Fatalf("CreateSuperAdmin error: %v", err)
	}
	if u.Role != model.RoleSuperAdmin {
		t.Fatalf("role = %s, want %s", u.Role, model.RoleSuperAdmin)
	}

	if _, err := f.svc.Auth.CreateSuperAdmin(ctx, admin, "second", "secret"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for a duplicate login, got %v", err)
	}
}
