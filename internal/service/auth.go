package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/policy"
	"github.com/mmeshcher/pos-ledger/internal/repository"
)

const defaultBcryptCost = bcrypt.DefaultCost

// Auth регистрирует и аутентифицирует пользователей, а также определяет организацию запроса.
type Auth struct {
	repo    Repository
	tenants *Tenants
	logger  *zap.Logger
	cost    int
}

// Register создаёт пользователя с ролью employee.
func (a *Auth) Register(ctx context.Context, username, password string) (*model.User, error) {
	u, err := a.createUser(ctx, username, password, model.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return u, nil
}

// CreateSuperAdmin создаёт ещё одного администратора платформы от имени действующего.
func (a *Auth) CreateSuperAdmin(ctx context.Context, actor model.Identity, username, password string) (*model.User, error) {
	if err := authorize(actor.Role, policy.ActionManagePlatform); err != nil {
		return nil, err
	}
	u, err := a.createUser(ctx, username, password, model.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("create super admin: %w", err)
	}
	return u, nil
}

// EnsureSuperAdmin создаёт администратора платформы при первом запуске.
// Повторный вызов с тем же логином ничего не меняет. Логин, занятый обычным
// пользователем, возвращает ErrConflict.
func (a *Auth) EnsureSuperAdmin(ctx context.Context, username, password string) (*model.User, error) {
	existing, err := a.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	switch {
	case err == nil && existing.Role == model.RoleSuperAdmin:
		return existing, nil
	case err == nil:
		return nil, fmt.Errorf("ensure super admin: %w: %q is not a platform admin", repository.ErrConflict, existing.Username)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("ensure super admin: %w", err)
	}

	u, err := a.createUser(ctx, username, password, model.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("ensure super admin: %w", err)
	}
	a.logger.Info("platform admin created", zap.String("username", u.Username))
	return u, nil
}

func (a *Auth) createUser(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := a.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate проверяет логин и пароль и возвращает личность пользователя.
func (a *Auth) Authenticate(ctx context.Context, username, password string) (model.Identity, error) {
	u, err := a.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, ErrInvalidCredentials
		}
		return model.Identity{}, err
	}
	if !u.IsActive {
		return model.Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return model.Identity{}, ErrInvalidCredentials
	}
	return model.Identity{UserID: u.ID, Role: u.Role}, nil
}

// ResolveTenant определяет организацию и роль, от имени которых выполняется запрос.
// Без явно запрошенной организации используется организация пользователя по умолчанию.
// Администратор платформы получает доступ к любой существующей организации.
func (a *Auth) ResolveTenant(ctx context.Context, id model.Identity, requested *uuid.UUID) (model.TenantContext, error) {
	u, err := a.repo.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TenantContext{}, ErrInvalidCredentials
		}
		return model.TenantContext{}, err
	}
	if !u.IsActive {
		return model.TenantContext{}, ErrInvalidCredentials
	}

	orgID := requested
	if orgID == nil {
		orgID = u.DefaultOrganizationID
	}
	if orgID == nil {
		return model.TenantContext{}, invalid("organization must be selected")
	}

	if u.Role == model.RoleSuperAdmin {
		if _, err := a.tenants.Get(ctx, *orgID); err != nil {
			return model.TenantContext{}, err
		}
		return model.TenantContext{OrganizationID: *orgID, UserID: u.ID, Role: model.RoleSuperAdmin}, nil
	}

	m, err := a.repo.GetMembership(ctx, u.ID, *orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TenantContext{}, fmt.Errorf("%w: no access to organization", ErrForbidden)
		}
		return model.TenantContext{}, err
	}
	if !m.IsActive {
		return model.TenantContext{}, fmt.Errorf("%w: no access to organization", ErrForbidden)
	}

	org, err := a.tenants.Get(ctx, *orgID)
	if err != nil {
		return model.TenantContext{}, err
	}
	if org.Status != model.OrganizationActive {
		return model.TenantContext{}, fmt.Errorf("%w: organization is %s", ErrForbidden, org.Status)
	}
	return model.TenantContext{OrganizationID: org.ID, UserID: u.ID, Role: m.Role}, nil
}
