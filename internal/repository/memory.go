package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

type membershipKey struct {
	userID uuid.UUID
	orgID  uuid.UUID
}

// MemoryRepository хранит все данные в памяти процесса. Используется при запуске без DATABASE_URI
// и в тестах. Транзакции выполняются под общим мьютексом, изменения применяются только при успехе.
type MemoryRepository struct {
	mu  sync.Mutex
	now func() time.Time

	users         map[uuid.UUID]model.User
	organizations map[uuid.UUID]model.Organization
	memberships   map[membershipKey]model.Membership
	customers     map[uuid.UUID]model.Customer
	orders        map[uuid.UUID]model.Order
	sequences     map[uuid.UUID]int64
}

// MemoryOption настраивает MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithClock задаёт источник текущего времени для временных меток.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		now:           time.Now,
		users:         make(map[uuid.UUID]model.User),
		organizations: make(map[uuid.UUID]model.Organization),
		memberships:   make(map[membershipKey]model.Membership),
		customers:     make(map[uuid.UUID]model.Customer),
		orders:        make(map[uuid.UUID]model.Order),
		sequences:     make(map[uuid.UUID]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close ничего не делает; нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error {
	return nil
}

func cloneOrder(o model.Order) model.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// WithinTx выполняет fn атомарно относительно всех остальных операций хранилища.
func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(l Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l := &memLedger{
		repo:      r,
		customers: make(map[uuid.UUID]model.Customer),
		orders:    make(map[uuid.UUID]*model.Order),
		sequences: make(map[uuid.UUID]int64),
	}
	if err := fn(l); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, c := range l.customers {
		r.customers[id] = c
	}
	for id, o := range l.orders {
		if o == nil {
			delete(r.orders, id)
			continue
		}
		r.orders[id] = *o
	}
	for id, v := range l.sequences {
		r.sequences[id] = v
	}
	return nil
}

// memLedger накапливает изменения транзакции поверх состояния хранилища.
type memLedger struct {
	repo      *MemoryRepository
	customers map[uuid.UUID]model.Customer
	orders    map[uuid.UUID]*model.Order // nil: заказ удалён в транзакции
	sequences map[uuid.UUID]int64
}

var _ Ledger = (*memLedger)(nil)

func (l *memLedger) customer(id uuid.UUID) (model.Customer, bool) {
	if c, ok := l.customers[id]; ok {
		return c, true
	}
	c, ok := l.repo.customers[id]
	return c, ok
}

func (l *memLedger) order(id uuid.UUID) (model.Order, bool) {
	if o, ok := l.orders[id]; ok {
		if o == nil {
			return model.Order{}, false
		}
		return cloneOrder(*o), true
	}
	o, ok := l.repo.orders[id]
	return cloneOrder(o), ok
}

func (l *memLedger) GetOrganization(_ context.Context, orgID uuid.UUID) (*model.Organization, error) {
	o, ok := l.repo.organizations[orgID]
	if !ok {
		return nil, fmt.Errorf("get organization: %w", ErrNotFound)
	}
	return &o, nil
}

func (l *memLedger) LockCustomer(_ context.Context, orgID, customerID uuid.UUID) (*model.Customer, error) {
	c, ok := l.customer(customerID)
	if !ok || c.OrganizationID != orgID {
		return nil, fmt.Errorf("lock customer: %w", ErrNotFound)
	}
	return &c, nil
}

func (l *memLedger) UpdateCustomerBonus(_ context.Context, customerID uuid.UUID, totalBonus decimal.Decimal, lastVisit *time.Time) error {
	c, ok := l.customer(customerID)
	if !ok {
		return fmt.Errorf("update customer bonus: %w", ErrNotFound)
	}
	c.TotalBonus = totalBonus
	if lastVisit != nil {
		v := *lastVisit
		c.LastVisit = &v
	}
	c.UpdatedAt = l.repo.now()
	l.customers[customerID] = c
	return nil
}

func (l *memLedger) NextOrderNumber(_ context.Context, orgID uuid.UUID) (int64, error) {
	cur, ok := l.sequences[orgID]
	if !ok {
		cur = l.repo.sequences[orgID]
	}
	l.sequences[orgID] = cur + 1
	return cur + 1, nil
}

func (l *memLedger) InsertOrder(_ context.Context, o *model.Order) error {
	if _, ok := l.order(o.ID); ok {
		return fmt.Errorf("insert order: %w", ErrConflict)
	}
	for _, existing := range l.repo.orders {
		if existing.OrganizationID == o.OrganizationID && existing.OrderNumber == o.OrderNumber {
			if staged, ok := l.orders[existing.ID]; ok && staged == nil {
				continue
			}
			return fmt.Errorf("insert order: %w", ErrConflict)
		}
	}
	for _, staged := range l.orders {
		if staged != nil && staged.OrganizationID == o.OrganizationID && staged.OrderNumber == o.OrderNumber {
			return fmt.Errorf("insert order: %w", ErrConflict)
		}
	}

	now := l.repo.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	stored := cloneOrder(*o)
	l.orders[o.ID] = &stored
	return nil
}

func (l *memLedger) LockOrder(_ context.Context, orgID, orderID uuid.UUID) (*model.Order, error) {
	o, ok := l.order(orderID)
	if !ok || o.OrganizationID != orgID {
		return nil, fmt.Errorf("lock order: %w", ErrNotFound)
	}
	return &o, nil
}

func (l *memLedger) UpdateOrderStatus(_ context.Context, orgID, orderID uuid.UUID, status model.OrderStatus) error {
	o, ok := l.order(orderID)
	if !ok || o.OrganizationID != orgID {
		return fmt.Errorf("update order status: %w", ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = l.repo.now()
	l.orders[orderID] = &o
	return nil
}

func (l *memLedger) DeleteOrder(_ context.Context, orgID, orderID uuid.UUID) error {
	o, ok := l.order(orderID)
	if !ok || o.OrganizationID != orgID {
		return fmt.Errorf("delete order: %w", ErrNotFound)
	}
	l.orders[orderID] = nil
	return nil
}

// CreateOrganization создаёт организацию и членство владельца.
func (r *MemoryRepository) CreateOrganization(_ context.Context, o *model.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.organizations[o.ID]; ok {
		return fmt.Errorf("insert organization: %w", ErrConflict)
	}
	owner, ok := r.users[o.OwnerID]
	if !ok {
		return fmt.Errorf("insert organization: owner: %w", ErrNotFound)
	}

	now := r.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	r.organizations[o.ID] = *o
	r.memberships[membershipKey{o.OwnerID, o.ID}] = model.Membership{
		UserID:         o.OwnerID,
		OrganizationID: o.ID,
		Role:           model.RoleOwner,
		IsActive:       true,
		JoinedAt:       now,
	}
	if owner.DefaultOrganizationID == nil {
		id := o.ID
		owner.DefaultOrganizationID = &id
		r.users[owner.ID] = owner
	}
	return nil
}

// GetOrganization возвращает организацию по идентификатору.
func (r *MemoryRepository) GetOrganization(_ context.Context, id uuid.UUID) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.organizations[id]
	if !ok {
		return nil, fmt.Errorf("get organization: %w", ErrNotFound)
	}
	return &o, nil
}

// UpdateOrganization сохраняет изменяемые настройки организации.
func (r *MemoryRepository) UpdateOrganization(_ context.Context, o *model.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.organizations[o.ID]
	if !ok {
		return fmt.Errorf("update organization: %w", ErrNotFound)
	}
	o.OwnerID = cur.OwnerID
	o.Status = cur.Status
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = r.now()
	r.organizations[o.ID] = *o
	return nil
}

// SetOrganizationStatus меняет статус организации.
func (r *MemoryRepository) SetOrganizationStatus(_ context.Context, id uuid.UUID, status model.OrganizationStatus) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.organizations[id]
	if !ok {
		return nil, fmt.Errorf("set organization status: %w", ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = r.now()
	r.organizations[id] = o
	return &o, nil
}

// DeleteOrganization удаляет организацию и все её данные.
func (r *MemoryRepository) DeleteOrganization(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.organizations[id]; !ok {
		return fmt.Errorf("delete organization: %w", ErrNotFound)
	}
	delete(r.organizations, id)
	delete(r.sequences, id)
	for cid, c := range r.customers {
		if c.OrganizationID == id {
			delete(r.customers, cid)
		}
	}
	for oid, o := range r.orders {
		if o.OrganizationID == id {
			delete(r.orders, oid)
		}
	}
	for key := range r.memberships {
		if key.orgID == id {
			delete(r.memberships, key)
		}
	}
	for uid, u := range r.users {
		if u.DefaultOrganizationID != nil && *u.DefaultOrganizationID == id {
			u.DefaultOrganizationID = nil
			r.users[uid] = u
		}
	}
	return nil
}

// ListOrganizations возвращает страницу организаций и их общее количество.
func (r *MemoryRepository) ListOrganizations(_ context.Context, f OrganizationFilter, p model.Page) ([]model.Organization, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(f.Search)
	var all []model.Organization
	for _, o := range r.organizations {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(o.Name), search) &&
			!strings.Contains(strings.ToLower(o.Email), search) && !strings.Contains(o.Phone, search) {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, p), len(all), nil
}

// ListUserOrganizations возвращает активные организации пользователя вместе с его ролями в них.
func (r *MemoryRepository) ListUserOrganizations(_ context.Context, userID uuid.UUID) ([]model.Organization, []model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var members []model.Membership
	for key, m := range r.memberships {
		if key.userID != userID || !m.IsActive {
			continue
		}
		if o, ok := r.organizations[key.orgID]; ok && o.Status == model.OrganizationActive {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })

	orgs := make([]model.Organization, 0, len(members))
	for _, m := range members {
		orgs = append(orgs, r.organizations[m.OrganizationID])
	}
	return orgs, members, nil
}

// ListMembers возвращает участников организации в порядке вступления.
func (r *MemoryRepository) ListMembers(_ context.Context, orgID uuid.UUID) ([]model.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Employee
	for key, m := range r.memberships {
		if key.orgID != orgID {
			continue
		}
		res = append(res, model.Employee{
			UserID:   m.UserID,
			Username: r.users[m.UserID].Username,
			Role:     m.Role,
			IsActive: m.IsActive,
			JoinedAt: m.JoinedAt,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].JoinedAt.Equal(res[j].JoinedAt) {
			return res[i].Username < res[j].Username
		}
		return res[i].JoinedAt.Before(res[j].JoinedAt)
	})
	return res, nil
}

// CreateUser создаёт нового пользователя.
func (r *MemoryRepository) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user: %w", ErrConflict)
		}
	}
	u.CreatedAt = r.now()
	r.users[u.ID] = *u
	return nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", ErrNotFound)
}

// GetUser возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return &u, nil
}

// GetMembership возвращает членство пользователя в организации.
func (r *MemoryRepository) GetMembership(_ context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memberships[membershipKey{userID, orgID}]
	if !ok {
		return nil, fmt.Errorf("get membership: %w", ErrNotFound)
	}
	return &m, nil
}

// CountMemberships возвращает количество активных членств пользователя с указанными ролями.
func (r *MemoryRepository) CountMemberships(_ context.Context, userID uuid.UUID, roles ...model.Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, m := range r.memberships {
		if key.userID != userID || !m.IsActive {
			continue
		}
		if len(roles) == 0 || slices.Contains(roles, m.Role) {
			n++
		}
	}
	return n, nil
}

// AddMembership добавляет пользователя в организацию.
func (r *MemoryRepository) AddMembership(_ context.Context, m *model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[m.UserID]
	if !ok {
		return fmt.Errorf("insert membership: user: %w", ErrNotFound)
	}
	key := membershipKey{m.UserID, m.OrganizationID}
	if _, ok := r.memberships[key]; ok {
		return fmt.Errorf("insert membership: %w", ErrConflict)
	}
	m.IsActive = true
	m.JoinedAt = r.now()
	r.memberships[key] = *m
	if u.DefaultOrganizationID == nil {
		id := m.OrganizationID
		u.DefaultOrganizationID = &id
		r.users[u.ID] = u
	}
	return nil
}

// RemoveMembership удаляет пользователя из организации.
func (r *MemoryRepository) RemoveMembership(_ context.Context, userID, orgID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := membershipKey{userID, orgID}
	if _, ok := r.memberships[key]; !ok {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	delete(r.memberships, key)

	u, ok := r.users[userID]
	if ok && u.DefaultOrganizationID != nil && *u.DefaultOrganizationID == orgID {
		u.DefaultOrganizationID = nil
		var first *model.Membership
		for k, m := range r.memberships {
			if k.userID == userID && (first == nil || m.JoinedAt.Before(first.JoinedAt)) {
				m := m
				first = &m
			}
		}
		if first != nil {
			id := first.OrganizationID
			u.DefaultOrganizationID = &id
		}
		r.users[userID] = u
	}
	return nil
}

// SetDefaultOrganization переключает организацию по умолчанию для пользователя.
func (r *MemoryRepository) SetDefaultOrganization(_ context.Context, userID, orgID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("set default organization: %w", ErrNotFound)
	}
	u.DefaultOrganizationID = &orgID
	r.users[userID] = u
	return nil
}

// CreateCustomer регистрирует клиента. Повтор телефона в той же организации возвращает ErrConflict.
func (r *MemoryRepository) CreateCustomer(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.organizations[c.OrganizationID]; !ok {
		return fmt.Errorf("insert customer: organization: %w", ErrNotFound)
	}
	for _, existing := range r.customers {
		if existing.OrganizationID == c.OrganizationID && existing.Phone == c.Phone {
			return fmt.Errorf("insert customer: %w", ErrConflict)
		}
	}
	now := r.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.customers[c.ID] = *c
	return nil
}

// GetCustomer возвращает клиента организации по идентификатору.
func (r *MemoryRepository) GetCustomer(_ context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[id]
	if !ok || c.OrganizationID != orgID {
		return nil, fmt.Errorf("get customer: %w", ErrNotFound)
	}
	return &c, nil
}

// GetCustomerByPhone возвращает клиента организации по номеру телефона.
func (r *MemoryRepository) GetCustomerByPhone(_ context.Context, orgID uuid.UUID, phone string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.customers {
		if c.OrganizationID == orgID && c.Phone == phone {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get customer by phone: %w", ErrNotFound)
}

// UpdateCustomer сохраняет профиль клиента. Бонусный баланс здесь не меняется.
func (r *MemoryRepository) UpdateCustomer(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.customers[c.ID]
	if !ok || cur.OrganizationID != c.OrganizationID {
		return fmt.Errorf("update customer: %w", ErrNotFound)
	}
	for id, existing := range r.customers {
		if id != c.ID && existing.OrganizationID == c.OrganizationID && existing.Phone == c.Phone {
			return fmt.Errorf("update customer: %w", ErrConflict)
		}
	}
	cur.Phone = c.Phone
	cur.Name = c.Name
	cur.Email = c.Email
	cur.Address = c.Address
	cur.Notes = c.Notes
	cur.IsActive = c.IsActive
	cur.UpdatedAt = r.now()
	r.customers[c.ID] = cur
	*c = cur
	return nil
}

// ListCustomers возвращает страницу клиентов организации, новые первыми.
func (r *MemoryRepository) ListCustomers(_ context.Context, orgID uuid.UUID, f CustomerFilter, p model.Page) ([]model.Customer, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(f.Name)
	var all []model.Customer
	for _, c := range r.customers {
		if c.OrganizationID != orgID {
			continue
		}
		if f.Phone != "" && !strings.Contains(c.Phone, f.Phone) {
			continue
		}
		if name != "" && (c.Name == nil || !strings.Contains(strings.ToLower(*c.Name), name)) {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, p), len(all), nil
}

// GetOrder возвращает заказ организации по идентификатору.
func (r *MemoryRepository) GetOrder(_ context.Context, orgID, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.OrganizationID != orgID {
		return nil, fmt.Errorf("get order: %w", ErrNotFound)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (f OrderFilter) match(o model.Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *f.CustomerID) {
		return false
	}
	if f.EmployeeID != nil && o.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.MinPrice != nil && o.TotalPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && o.TotalPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// ListOrders возвращает страницу заказов организации, новые первыми. p.Limit <= 0 снимает ограничение.
func (r *MemoryRepository) ListOrders(_ context.Context, orgID uuid.UUID, f OrderFilter, p model.Page) ([]model.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []model.Order
	for _, o := range r.orders {
		if o.OrganizationID == orgID && f.match(o) {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].OrderNumber > all[j].OrderNumber
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if p.Limit <= 0 {
		return all, len(all), nil
	}
	return paginate(all, p), len(all), nil
}

func paginate[T any](items []T, p model.Page) []T {
	start := p.Offset()
	if start >= len(items) || start < 0 {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
