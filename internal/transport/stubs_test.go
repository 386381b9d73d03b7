package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/media"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Stub services. Unset functions panic, so a test only wires what it exercises.

type stubCatalog struct {
	productByKey func(key string) (*domain.Product, bool, error)
	list         func(filter domain.ProductFilter) (*domain.ProductPage, error)
	categories   []*domain.Category
	images       []*domain.ProductImage
	views        []int64
}

func (s *stubCatalog) ProductByKey(ctx context.Context, key string) (*domain.Product, bool, error) {
	return s.productByKey(key)
}

func (s *stubCatalog) ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	return s.list(filter)
}

func (s *stubCatalog) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories, nil
}

func (s *stubCatalog) Images(ctx context.Context, productID int64) ([]*domain.ProductImage, error) {
	return s.images, nil
}

func (s *stubCatalog) RecordView(ctx context.Context, productID int64) {
	s.views = append(s.views, productID)
}

func (s *stubCatalog) Invalidate(ctx context.Context) {}

type stubCart struct {
	add    func(owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error)
	items  func(owner domain.Owner) (*domain.Cart, error)
	update func(owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error)
	remove func(owner domain.Owner, productID int64) (domain.CartSummary, error)
}

func (s *stubCart) AddItem(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error) {
	return s.add(owner, productID, quantity)
}

func (s *stubCart) Items(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	return s.items(owner)
}

func (s *stubCart) UpdateQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error) {
	return s.update(owner, productID, quantity)
}

func (s *stubCart) RemoveItem(ctx context.Context, owner domain.Owner, productID int64) (domain.CartSummary, error) {
	return s.remove(owner, productID)
}

func (s *stubCart) Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error) {
	return domain.CartSummary{}, nil
}

type stubTracking struct {
	refresh func(owner domain.Owner, req service.RefreshRequest) (*domain.TrackingUpdate, error)
	lookup  func(number, carrierName string, force bool) (*domain.TrackingLookup, error)
	status  func(carrierName string) ([]*domain.CarrierStatus, error)
}

func (s *stubTracking) Refresh(ctx context.Context, owner domain.Owner, req service.RefreshRequest) (*domain.TrackingUpdate, error) {
	return s.refresh(owner, req)
}

func (s *stubTracking) Lookup(ctx context.Context, number, carrierName string, force bool) (*domain.TrackingLookup, error) {
	return s.lookup(number, carrierName, force)
}

func (s *stubTracking) CarrierStatus(ctx context.Context, carrierName string) ([]*domain.CarrierStatus, error) {
	return s.status(carrierName)
}

type stubPayments struct {
	checkout func(owner domain.Owner) (*domain.CheckoutSession, error)
	verify   func(reference string) (*domain.PaymentResult, error)
	webhook  func(body []byte, signature string) (string, error)
}

func (s *stubPayments) InitiateCheckout(ctx context.Context, owner domain.Owner) (*domain.CheckoutSession, error) {
	return s.checkout(owner)
}

func (s *stubPayments) Verify(ctx context.Context, reference string) (*domain.PaymentResult, error) {
	return s.verify(reference)
}

func (s *stubPayments) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	return s.webhook(body, signature)
}

type stubUsers struct {
	register func(email, password, fullName, phone string) (*domain.User, error)
	login    func(email, password string) (*domain.User, string, error)
	reset    func(token, password string) error
	forgot   []string
}

func (s *stubUsers) Register(ctx context.Context, email, password, fullName, phone string) (*domain.User, error) {
	return s.register(email, password, fullName, phone)
}

func (s *stubUsers) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	return s.login(email, password)
}

// ValidateToken accepts the fixed tokens the tests send as bearer credentials
func (s *stubUsers) ValidateToken(token string) (*service.Claims, error) {
	switch token {
	case "customer-token":
		return &service.Claims{UserID: 10, Email: "ada@example.com", Name: "Ada", Role: domain.RoleCustomer}, nil
	case "admin-token":
		return &service.Claims{UserID: 1, Email: "root@example.com", Name: "Root", Role: domain.RoleAdmin}, nil
	}
	return nil, service.ErrInvalidToken
}

func (s *stubUsers) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return &domain.User{ID: userID, Email: "ada@example.com", FullName: "Ada", Role: domain.RoleCustomer}, nil
}

func (s *stubUsers) RequestPasswordReset(ctx context.Context, email string) error {
	s.forgot = append(s.forgot, email)
	return nil
}

func (s *stubUsers) ResetPassword(ctx context.Context, token, password string) error {
	return s.reset(token, password)
}

type stubAdmin struct {
	createProduct func(input service.ProductInput) (*domain.Product, error)
	upload        func(productID int64, body []byte) (*domain.ProductImage, error)
	ship          func(orderID int64, number string) (*domain.Order, error)
}

func (s *stubAdmin) CreateCategory(ctx context.Context, name string, displayOrder int) (*domain.Category, error) {
	return &domain.Category{ID: 1, Name: name, Slug: strings.ToLower(name), DisplayOrder: displayOrder}, nil
}

func (s *stubAdmin) CreateProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	return s.createProduct(input)
}

func (s *stubAdmin) UploadProductImage(ctx context.Context, productID int64, body io.Reader) (*domain.ProductImage, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return s.upload(productID, data)
}

func (s *stubAdmin) ShipOrder(ctx context.Context, orderID int64, number string) (*domain.Order, error) {
	return s.ship(orderID, number)
}

// app wires every handler the way the server does, on top of stub services
type app struct {
	catalog  *stubCatalog
	cart     *stubCart
	tracking *stubTracking
	payments *stubPayments
	users    *stubUsers
	admin    *stubAdmin
	router   chi.Router
}

func newApp(t *testing.T) *app {
	t.Helper()

	logger := zap.NewNop()
	views, err := view.New(false, logger)
	require.NoError(t, err)

	sessions := session.NewManager(config.SessionConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		Name:   "test_session",
		MaxAge: 3600,
	})

	a := &app{
		catalog:  &stubCatalog{},
		cart:     &stubCart{},
		tracking: &stubTracking{},
		payments: &stubPayments{},
		users:    &stubUsers{},
		admin:    &stubAdmin{},
	}

	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(sessions, a.users, logger))

	NewCatalogHandler(a.catalog, media.NewLocalStore(t.TempDir(), "/uploads"), sessions, views, logger).RegisterRoutes(r)
	NewCartHandler(a.cart, sessions, views, logger).RegisterRoutes(r)
	NewTrackingHandler(a.tracking, logger).RegisterRoutes(r)
	payments := NewPaymentHandler(a.payments, sessions, views, logger)
	payments.RegisterRoutes(r)
	payments.RegisterWebhook(r)
	NewUserHandler(a.users, sessions, views, logger).RegisterRoutes(r)
	NewAdminHandler(a.admin, logger).RegisterRoutes(r)

	a.router = r
	return a
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// follow replays the cookies a response set onto a new GET request. A cookie saved twice
// during the request keeps its last value.
func follow(w *httptest.ResponseRecorder, target string) *http.Request {
	latest := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		latest[c.Name] = c
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range latest {
		req.AddCookie(c)
	}
	return req
}
