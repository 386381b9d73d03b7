package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/gateway"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// Map-backed repositories for service tests. Transactions run the function directly.

type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type mockUserRepository struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return domain.ErrUserAlreadyExists
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			user.PasswordHash = hash
			return nil
		}
	}
	return domain.ErrUserNotFound
}

type mockPasswordResetRepository struct {
	byUser map[int64]*domain.PasswordResetToken
	nextID int64
}

func newMockPasswordResetRepository() *mockPasswordResetRepository {
	return &mockPasswordResetRepository{byUser: make(map[int64]*domain.PasswordResetToken)}
}

func (m *mockPasswordResetRepository) Upsert(ctx context.Context, token *domain.PasswordResetToken) error {
	m.nextID++
	token.ID = m.nextID
	token.UsedAt = nil
	token.CreatedAt = time.Now()
	copied := *token
	m.byUser[token.UserID] = &copied
	return nil
}

func (m *mockPasswordResetRepository) FindUsable(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error) {
	for _, t := range m.byUser {
		if t.Token == token && t.Usable(now) {
			copied := *t
			return &copied, nil
		}
	}
	return nil, domain.ErrResetTokenNotFound
}

func (m *mockPasswordResetRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time) error {
	for _, t := range m.byUser {
		if t.ID == id && t.UsedAt == nil {
			t.UsedAt = &usedAt
			return nil
		}
	}
	return domain.ErrResetTokenNotFound
}

type capturingNotifier struct {
	links []string
}

func (n *capturingNotifier) SendPasswordReset(ctx context.Context, user *domain.User, link string) error {
	n.links = append(n.links, link)
	return nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	views    map[int64]int
	nextID   int64
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[int64]*domain.Product), views: make(map[int64]int)}
	for _, p := range products {
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return repository.ErrProductSlugTaken
		}
	}
	m.nextID++
	product.ID = m.nextID
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (m *mockProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return m.FindByID(ctx, id)
}

func (m *mockProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	_, err := m.FindBySlug(ctx, slug)
	return err == nil, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := []*domain.Product{}
	for _, p := range m.products {
		if p.IsActive() {
			copied := *p
			products = append(products, &copied)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, len(products), nil
}

func (m *mockProductRepository) ReserveStock(ctx context.Context, id int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < quantity {
		return &domain.InsufficientStockError{ProductID: id, Available: p.Stock}
	}
	p.Stock -= quantity
	return nil
}

func (m *mockProductRepository) ReleaseStock(ctx context.Context, id int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (m *mockProductRepository) StockLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	levels := make(map[int64]int, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			levels[id] = p.Stock
		}
	}
	return levels, nil
}

func (m *mockProductRepository) IncrementViews(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[id]++
	return nil
}

func (m *mockProductRepository) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

type mockCartRepository struct {
	mu    sync.Mutex
	items map[string]map[int64]*domain.CartItem
	names map[int64]string
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{
		items: make(map[string]map[int64]*domain.CartItem),
		names: make(map[int64]string),
	}
}

func (m *mockCartRepository) Upsert(ctx context.Context, owner domain.Owner, productID int64, quantity int, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.items[owner.Key()]
	if lines == nil {
		lines = make(map[int64]*domain.CartItem)
		m.items[owner.Key()] = lines
	}
	if item, ok := lines[productID]; ok {
		if item.Quantity+quantity > domain.MaxCartQuantity {
			return domain.NewValidationError("quantity", "too many")
		}
		item.Quantity += quantity
		return nil
	}
	lines[productID] = &domain.CartItem{ProductID: productID, Quantity: quantity, Price: price}
	return nil
}

func (m *mockCartRepository) Find(ctx context.Context, owner domain.Owner, productID int64) (*domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[owner.Key()][productID]
	if !ok {
		return nil, domain.ErrCartItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *mockCartRepository) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[owner.Key()][productID]
	if !ok {
		return domain.ErrCartItemNotFound
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepository) Delete(ctx context.Context, owner domain.Owner, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[owner.Key()][productID]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(m.items[owner.Key()], productID)
	return nil
}

func (m *mockCartRepository) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := []domain.CartLine{}
	for id, item := range m.items[owner.Key()] {
		lines = append(lines, domain.CartLine{
			ProductID:   id,
			ProductName: m.names[id],
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (m *mockCartRepository) Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := domain.CartSummary{}
	for _, item := range m.items[owner.Key()] {
		summary.ItemsCount++
		summary.TotalQuantity += item.Quantity
	}
	return summary, nil
}

func (m *mockCartRepository) RemoveOrdered(ctx context.Context, owner domain.Owner, items []*domain.OrderItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, ordered := range items {
		item, ok := m.items[owner.Key()][ordered.ProductID]
		if !ok {
			continue
		}
		if item.Quantity <= ordered.Quantity {
			delete(m.items[owner.Key()], ordered.ProductID)
			removed++
			continue
		}
		item.Quantity -= ordered.Quantity
	}
	return removed, nil
}

type mockOrderRepository struct {
	orders map[int64]*domain.Order
	items  map[int64][]*domain.OrderItem
	nextID int64
}

func newMockOrderRepository(orders ...*domain.Order) *mockOrderRepository {
	m := &mockOrderRepository{orders: make(map[int64]*domain.Order), items: make(map[int64][]*domain.OrderItem)}
	for _, o := range orders {
		if o.ID > m.nextID {
			m.nextID = o.ID
		}
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.nextID++
	order.ID = m.nextID
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) CreateItems(ctx context.Context, items []*domain.OrderItem) error {
	for _, item := range items {
		m.items[item.OrderID] = append(m.items[item.OrderID], item)
	}
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.PaymentReference != nil && *o.PaymentReference == reference {
			copied := *o
			return &copied, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderRepository) Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.PaidAt = &paidAt
	o.Status = domain.OrderStatusProcessing
	return nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepository) SetTrackingNumber(ctx context.Context, id int64, trackingNumber string) error {
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.TrackingNumber = &trackingNumber
	o.Status = domain.OrderStatusShipped
	return nil
}

type eventKey struct {
	orderID int64
	status  string
	date    time.Time
}

type mockTrackingRepository struct {
	events []*domain.OrderTrackingEvent
	seen   map[eventKey]bool
	cache  map[string]*domain.ShippingTrackingCache
	upsert int
}

func newMockTrackingRepository() *mockTrackingRepository {
	return &mockTrackingRepository{
		seen:  make(map[eventKey]bool),
		cache: make(map[string]*domain.ShippingTrackingCache),
	}
}

func (m *mockTrackingRepository) InsertEvent(ctx context.Context, orderID int64, event domain.TrackingEvent) (bool, error) {
	key := eventKey{orderID, event.Status, event.TrackingDate.UTC()}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	m.events = append(m.events, &domain.OrderTrackingEvent{
		ID:           int64(len(m.events) + 1),
		OrderID:      orderID,
		Status:       event.Status,
		Location:     event.Location,
		Description:  event.Description,
		TrackingDate: event.TrackingDate,
		CreatedAt:    time.Now(),
	})
	return true, nil
}

func (m *mockTrackingRepository) RecentEvents(ctx context.Context, orderID int64, limit int) ([]*domain.OrderTrackingEvent, error) {
	events := []*domain.OrderTrackingEvent{}
	for _, e := range m.events {
		if e.OrderID == orderID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].TrackingDate.Equal(events[j].TrackingDate) {
			return events[i].TrackingDate.After(events[j].TrackingDate)
		}
		return events[i].ID > events[j].ID
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *mockTrackingRepository) FindCache(ctx context.Context, trackingNumber string) (*domain.ShippingTrackingCache, error) {
	entry, ok := m.cache[trackingNumber]
	if !ok {
		return nil, repository.ErrTrackingNotCached
	}
	copied := *entry
	return &copied, nil
}

func (m *mockTrackingRepository) UpsertCache(ctx context.Context, entry *domain.ShippingTrackingCache) error {
	m.upsert++
	copied := *entry
	m.cache[entry.TrackingNumber] = &copied
	return nil
}

type mockWebhookEventRepository struct {
	events []*domain.WebhookEvent
}

func (m *mockWebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	event.ID = int64(len(m.events) + 1)
	event.ReceivedAt = time.Now()
	m.events = append(m.events, event)
	return nil
}

func (m *mockWebhookEventRepository) ListByReference(ctx context.Context, reference string) ([]*domain.WebhookEvent, error) {
	events := []*domain.WebhookEvent{}
	for _, e := range m.events {
		if e.Reference == reference {
			events = append(events, e)
		}
	}
	return events, nil
}

type mockCategoryRepository struct {
	categories []*domain.Category
	listCalls  int
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	category.ID = int64(len(m.categories) + 1)
	if category.Status == "" {
		category.Status = "active"
	}
	m.categories = append(m.categories, category)
	return nil
}

func (m *mockCategoryRepository) ListActive(ctx context.Context) ([]*domain.Category, error) {
	m.listCalls++
	return m.categories, nil
}

func (m *mockCategoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

type mockImageRepository struct {
	images []*domain.ProductImage
}

func (m *mockImageRepository) Create(ctx context.Context, image *domain.ProductImage) error {
	image.ID = int64(len(m.images) + 1)
	image.IsMain = true
	for _, img := range m.images {
		if img.ProductID == image.ProductID {
			image.IsMain = false
		}
	}
	m.images = append(m.images, image)
	return nil
}

func (m *mockImageRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductImage, error) {
	images := []*domain.ProductImage{}
	for _, img := range m.images {
		if img.ProductID == productID {
			images = append(images, img)
		}
	}
	return images, nil
}

// mockGateway is a testify double of the payment gateway client
type mockGateway struct {
	mock.Mock
	secret string
}

func (m *mockGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.Authorization, error) {
	args := m.Called(ctx, req)
	auth, _ := args.Get(0).(*gateway.Authorization)
	return auth, args.Error(1)
}

func (m *mockGateway) Verify(ctx context.Context, reference string) (*domain.PaymentVerification, error) {
	args := m.Called(ctx, reference)
	v, _ := args.Get(0).(*domain.PaymentVerification)
	return v, args.Error(1)
}

func (m *mockGateway) VerifySignature(body []byte, signature string) bool {
	return gateway.VerifySignature(m.secret, body, signature)
}

func activeProduct(id int64, slug string, stock int, price string) *domain.Product {
	return &domain.Product{
		ID:     id,
		Slug:   slug,
		Name:   slug,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: domain.ProductStatusActive,
	}
}
