package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-ledger/internal/cache"
	"github.com/mmeshcher/pos-ledger/internal/model"
	"github.com/mmeshcher/pos-ledger/internal/policy"
	"github.com/mmeshcher/pos-ledger/internal/repository"
	"github.com/mmeshcher/pos-ledger/internal/validation"
)

// Tenants ведёт справочник организаций и их настроек.
type Tenants struct {
	repo   Repository
	cache  OrganizationCache
	logger *zap.Logger
}

// OrganizationInput содержит атрибуты новой организации. Пустые значения заменяются значениями по умолчанию.
type OrganizationInput struct {
	Name              string           `json:"name"`
	BusinessType      string           `json:"businessType"`
	Address           string           `json:"address"`
	Phone             string           `json:"phone"`
	Email             string           `json:"email"`
	Currency          string           `json:"currency"`
	BonusPercentage   *decimal.Decimal `json:"bonusPercentage"`
	OrderPrefix       string           `json:"orderPrefix"`
	AutoConfirmOrders *bool            `json:"autoConfirmOrders"`
}

// SettingsPatch описывает изменение настроек организации. nil-поля не меняются.
type SettingsPatch struct {
	Name              *string          `json:"name"`
	BusinessType      *string          `json:"businessType"`
	Address           *string          `json:"address"`
	Phone             *string          `json:"phone"`
	Email             *string          `json:"email"`
	Currency          *string          `json:"currency"`
	BonusPercentage   *decimal.Decimal `json:"bonusPercentage"`
	OrderPrefix       *string          `json:"orderPrefix"`
	AutoConfirmOrders *bool            `json:"autoConfirmOrders"`
	OwnerID           *uuid.UUID       `json:"ownerId"`
}

func validBonusPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(1))
}

// Get возвращает организацию, используя кэш, если он настроен.
func (t *Tenants) Get(ctx context.Context, orgID uuid.UUID) (*model.Organization, error) {
	if t.cache != nil {
		org, err := t.cache.Get(ctx, orgID)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			t.logger.Warn("organization cache read failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		}
	}

	org, err := t.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		if err := t.cache.Set(ctx, org); err != nil {
			t.logger.Warn("organization cache write failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		}
	}
	return org, nil
}

func (t *Tenants) invalidate(ctx context.Context, orgID uuid.UUID) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Invalidate(ctx, orgID); err != nil {
		t.logger.Warn("organization cache invalidate failed", zap.String("organization_id", orgID.String()), zap.Error(err))
	}
}

// Create создаёт организацию, владельцем которой становится пользователь owner.
func (t *Tenants) Create(ctx context.Context, owner model.Identity, in OrganizationInput) (*model.Organization, error) {
	if err := t.canCreate(ctx, owner); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}

	org := &model.Organization{
		ID:                uuid.New(),
		Name:              name,
		BusinessType:      model.DefaultBusinessType,
		Address:           in.Address,
		Phone:             in.Phone,
		Email:             in.Email,
		Currency:          model.DefaultCurrency,
		BonusPercentage:   model.DefaultBonusPercentage,
		OrderPrefix:       model.DefaultOrderPrefix,
		Status:            model.OrganizationActive,
		OwnerID:           owner.UserID,
		AutoConfirmOrders: true,
	}
	if in.BusinessType != "" {
		org.BusinessType = in.BusinessType
	}
	if in.Currency != "" {
		org.Currency = strings.ToUpper(in.Currency)
	}
	if in.BonusPercentage != nil {
		if !validBonusPercentage(*in.BonusPercentage) {
			return nil, invalid("bonusPercentage must be between 0 and 1")
		}
		org.BonusPercentage = *in.BonusPercentage
	}
	if in.OrderPrefix != "" {
		org.OrderPrefix = validation.NormalizeOrderPrefix(in.OrderPrefix)
		if !validation.IsValidOrderPrefix(org.OrderPrefix) {
			return nil, invalid("orderPrefix must be 1-3 letters or digits")
		}
	}
	if in.AutoConfirmOrders != nil {
		org.AutoConfirmOrders = *in.AutoConfirmOrders
	}

	if err := t.repo.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// canCreate разрешает создание организации администратору платформы, пользователю без организаций,
// а также владельцам и менеджерам существующих организаций.
func (t *Tenants) canCreate(ctx context.Context, id model.Identity) error {
	if id.Role == model.RoleSuperAdmin {
		return nil
	}
	total, err := t.repo.CountMemberships(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("count memberships: %w", err)
	}
	if total == 0 {
		return nil
	}
	var roles []model.Role
	for _, role := range []model.Role{model.RoleOwner, model.RoleManager, model.RoleEmployee} {
		if policy.CanPerform(role, policy.ActionCreateOrganization) {
			roles = append(roles, role)
		}
	}
	n, err := t.repo.CountMemberships(ctx, id.UserID, roles...)
	if err != nil {
		return fmt.Errorf("count memberships: %w", err)
	}
	if n > 0 {
		return nil
	}
	return fmt.Errorf("%w: only owners and managers may create organizations", ErrForbidden)
}

// Current возвращает организацию арендатора.
func (t *Tenants) Current(ctx context.Context, tc model.TenantContext) (*model.Organization, error) {
	if err := authorize(tc.Role, policy.ActionViewOrganization); err != nil {
		return nil, err
	}
	return t.Get(ctx, tc.OrganizationID)
}

// Employees возвращает участников текущей организации.
func (t *Tenants) Employees(ctx context.Context, tc model.TenantContext) ([]model.Employee, error) {
	if err := authorize(tc.Role, policy.ActionViewOrganization); err != nil {
		return nil, err
	}
	res, err := t.repo.ListMembers(ctx, tc.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return res, nil
}

// UpdateSettings меняет настройки организации. Смена владельца запрещена.
func (t *Tenants) UpdateSettings(ctx context.Context, tc model.TenantContext, patch SettingsPatch) (*model.Organization, error) {
	if err := authorize(tc.Role, policy.ActionUpdateSettings); err != nil {
		return nil, err
	}
	if patch.OwnerID != nil {
		return nil, invalid("ownerId cannot be changed")
	}

	org, err := t.repo.GetOrganization(ctx, tc.OrganizationID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		org.Name = name
	}
	if patch.BusinessType != nil {
		org.BusinessType = *patch.BusinessType
	}
	if patch.Address != nil {
		org.Address = *patch.Address
	}
	if patch.Phone != nil {
		org.Phone = *patch.Phone
	}
	if patch.Email != nil {
		org.Email = *patch.Email
	}
	if patch.Currency != nil {
		org.Currency = strings.ToUpper(*patch.Currency)
	}
	if patch.BonusPercentage != nil {
		if !validBonusPercentage(*patch.BonusPercentage) {
			return nil, invalid("bonusPercentage must be between 0 and 1")
		}
		org.BonusPercentage = *patch.BonusPercentage
	}
	if patch.OrderPrefix != nil {
		prefix := validation.NormalizeOrderPrefix(*patch.OrderPrefix)
		if !validation.IsValidOrderPrefix(prefix) {
			return nil, invalid("orderPrefix must be 1-3 letters or digits")
		}
		org.OrderPrefix = prefix
	}
	if patch.AutoConfirmOrders != nil {
		org.AutoConfirmOrders = *patch.AutoConfirmOrders
	}

	if err := t.repo.UpdateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	t.invalidate(ctx, org.ID)
	return org, nil
}

// SetStatus меняет статус организации. Доступно только администратору платформы.
func (t *Tenants) SetStatus(ctx context.Context, id model.Identity, orgID uuid.UUID, status model.OrganizationStatus) (*model.Organization, error) {
	if err := authorize(id.Role, policy.ActionManagePlatform); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	org, err := t.repo.SetOrganizationStatus(ctx, orgID, status)
	if err != nil {
		return nil, err
	}
	t.invalidate(ctx, orgID)
	return org, nil
}

// Delete удаляет организацию вместе со всеми её клиентами, заказами и членствами.
func (t *Tenants) Delete(ctx context.Context, id model.Identity, orgID uuid.UUID) error {
	if err := authorize(id.Role, policy.ActionManagePlatform); err != nil {
		return err
	}
	if err := t.repo.DeleteOrganization(ctx, orgID); err != nil {
		return err
	}
	t.invalidate(ctx, orgID)
	return nil
}

// List возвращает организации платформы постранично.
func (t *Tenants) List(ctx context.Context, id model.Identity, f repository.OrganizationFilter, p model.Page) ([]model.Organization, model.Pagination, error) {
	if err := authorize(id.Role, policy.ActionManagePlatform); err != nil {
		return nil, model.Pagination{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, model.Pagination{}, invalid("unknown status %q", f.Status)
	}
	orgs, total, err := t.repo.ListOrganizations(ctx, f, p)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return orgs, model.NewPagination(p, total), nil
}

// UserOrganization описывает организацию пользователя вместе с его ролью в ней.
type UserOrganization struct {
	Organization model.Organization `json:"organization"`
	Role         model.Role         `json:"role"`
	JoinedAt     time.Time          `json:"joinedAt"`
	IsDefault    bool               `json:"isDefault"`
}

// Mine возвращает активные организации пользователя.
func (t *Tenants) Mine(ctx context.Context, userID uuid.UUID) ([]UserOrganization, error) {
	u, err := t.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgs, members, err := t.repo.ListUserOrganizations(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]UserOrganization, 0, len(orgs))
	for i, org := range orgs {
		res = append(res, UserOrganization{
			Organization: org,
			Role:         members[i].Role,
			JoinedAt:     members[i].JoinedAt,
			IsDefault:    u.DefaultOrganizationID != nil && *u.DefaultOrganizationID == org.ID,
		})
	}
	return res, nil
}

// Switch делает организацию организацией пользователя по умолчанию.
func (t *Tenants) Switch(ctx context.Context, userID, orgID uuid.UUID) error {
	m, err := t.repo.GetMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: no access to organization", ErrForbidden)
		}
		return err
	}
	if !m.IsActive {
		return fmt.Errorf("%w: no access to organization", ErrForbidden)
	}
	return t.repo.SetDefaultOrganization(ctx, userID, orgID)
}

// AddMember добавляет пользователя в организацию арендатора.
func (t *Tenants) AddMember(ctx context.Context, tc model.TenantContext, userID uuid.UUID, role model.Role) (*model.Membership, error) {
	if err := authorize(tc.Role, policy.ActionAddMember); err != nil {
		return nil, err
	}
	if role == "" {
		role = model.RoleEmployee
	}
	if !role.Valid() || role == model.RoleSuperAdmin {
		return nil, invalid("unknown role %q", role)
	}
	if role == model.RoleOwner && tc.Role != model.RoleOwner && tc.Role != model.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only owners may add owners", ErrForbidden)
	}

	m := &model.Membership{UserID: userID, OrganizationID: tc.OrganizationID, Role: role}
	if err := t.repo.AddMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

// RemoveMember исключает пользователя из организации арендатора.
func (t *Tenants) RemoveMember(ctx context.Context, tc model.TenantContext, userID uuid.UUID) error {
	if err := authorize(tc.Role, policy.ActionRemoveMember); err != nil {
		return err
	}
	org, err := t.repo.GetOrganization(ctx, tc.OrganizationID)
	if err != nil {
		return err
	}
	if org.OwnerID == userID {
		return invalid("the owner cannot be removed")
	}
	if err := t.repo.RemoveMembership(ctx, userID, tc.OrganizationID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
