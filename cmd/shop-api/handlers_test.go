package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acampos/tienda-api/internal/auth"
	"github.com/acampos/tienda-api/internal/metrics"
	ord "github.com/acampos/tienda-api/internal/order"
	prod "github.com/acampos/tienda-api/internal/product"
	"github.com/acampos/tienda-api/internal/session"
	"github.com/acampos/tienda-api/internal/user"
)

//
// ---------- STUBS & FAKES ----------
//

// stubOrderRepo implements ord.Repository in memory.
type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*ord.Order
	items  map[string][]ord.Item
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[string]*ord.Order), items: make(map[string][]ord.Item)}
}

func (s *stubOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

func (s *stubOrderRepo) Create(ctx context.Context, o *ord.Order, items []ord.Item) error {
	cp := *o
	s.orders[o.ID] = &cp
	s.items[o.ID] = append([]ord.Item(nil), items...)
	return nil
}

func (s *stubOrderRepo) GetByID(ctx context.Context, id string) (*ord.Order, []ord.Item, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, nil, ord.ErrNotFound
	}
	cp := *o
	return &cp, append([]ord.Item(nil), s.items[id]...), nil
}

func (s *stubOrderRepo) GetForUpdate(ctx context.Context, id string) (*ord.Order, []ord.Item, error) {
	return s.GetByID(ctx, id)
}

func (s *stubOrderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]ord.Order, error) {
	var out []ord.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id string, status ord.Status) error {
	o, ok := s.orders[id]
	if !ok {
		return ord.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrderRepo) GetItems(ctx context.Context, orderID string) ([]ord.Item, error) {
	return append([]ord.Item(nil), s.items[orderID]...), nil
}

// stubProductRepo implements prod.Repository in memory.
type stubProductRepo struct {
	mu         sync.Mutex
	products   map[string]*prod.Product
	categories map[string]*prod.Category
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[string]*prod.Product), categories: make(map[string]*prod.Category)}
}

func (s *stubProductRepo) Create(ctx context.Context, p *prod.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *stubProductRepo) GetByID(ctx context.Context, id string) (*prod.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, prod.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubProductRepo) List(ctx context.Context, q prod.Query) ([]prod.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []prod.Product
	for _, p := range s.products {
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.Featured != nil && p.Featured != *q.Featured {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubProductRepo) Update(ctx context.Context, p *prod.Product, updatePrice bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *stubProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

func (s *stubProductRepo) PriceRange(ctx context.Context) (prod.PriceRange, error) {
	return prod.PriceRange{Min: "0", Max: "0"}, nil
}

func (s *stubProductRepo) ListCategories(ctx context.Context) ([]prod.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []prod.Category
	for _, c := range s.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubProductRepo) CreateCategory(ctx context.Context, c *prod.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return prod.ErrCategoryExists
		}
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *stubProductRepo) IncrementStock(ctx context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return prod.ErrNotFound
	}
	p.Stock += qty
	return nil
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, id string, qty int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return "", prod.ErrNotFound
	}
	if p.Stock < qty {
		return "", prod.ErrInsufficientStock
	}
	p.Stock -= qty
	return p.Price, nil
}

// stubUserRepo implements user.Repository in memory.
type stubUserRepo struct {
	byEmail map[string]*user.User
}

func newStubUserRepo() *stubUserRepo { return &stubUserRepo{byEmail: make(map[string]*user.User)} }

func (s *stubUserRepo) Create(ctx context.Context, u *user.User) error {
	if _, ok := s.byEmail[u.Email]; ok {
		return user.ErrAlreadyExist
	}
	cp := *u
	s.byEmail[u.Email] = &cp
	return nil
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUserRepo) Update(ctx context.Context, u *user.User, updatePassword bool) error {
	var cur *user.User
	var curEmail string
	for k, e := range s.byEmail {
		if e.ID == u.ID {
			cur, curEmail = e, k
			break
		}
	}
	if cur == nil {
		return nil
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	if u.Email != "" && u.Email != curEmail {
		if _, taken := s.byEmail[u.Email]; taken {
			return user.ErrAlreadyExist
		}
		delete(s.byEmail, curEmail)
		cur.Email = u.Email
		s.byEmail[u.Email] = cur
	}
	if updatePassword {
		cur.PasswordHash = u.PasswordHash
	}
	return nil
}

func (s *stubUserRepo) Delete(ctx context.Context, id string) (bool, error) {
	for k, e := range s.byEmail {
		if e.ID == id {
			delete(s.byEmail, k)
			return true, nil
		}
	}
	return false, nil
}

//
// ---------- HARNESS ----------
//

type harness struct {
	router   *gin.Engine
	orders   *stubOrderRepo
	products *stubProductRepo
	users    *stubUserRepo
	sessions *session.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	orders := newStubOrderRepo()
	products := newStubProductRepo()
	users := newStubUserRepo()
	sessions := session.NewMemoryStore(time.Hour)
	userSvc := user.NewService(users, sessions)
	orderSvc := ord.NewService(orders, products, nil)
	m := metrics.New(prometheus.NewRegistry())

	return &harness{
		router:   newRouter(userSvc, products, orderSvc, sessions, m),
		orders:   orders,
		products: products,
		users:    users,
		sessions: sessions,
	}
}

func (h *harness) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := h.sessions.Create(context.Background(), session.Session{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) addProduct(stock int, price string) string {
	id := uuid.NewString()
	h.products.products[id] = &prod.Product{ID: id, Name: "TestProd", Price: price, Stock: stock}
	return id
}

func (h *harness) addUser(username, email, role string) string {
	id := uuid.NewString()
	h.users.byEmail[email] = &user.User{ID: id, Username: username, Email: email, Role: role}
	return id
}

func (h *harness) addOrder(userID string, status ord.Status, items ...ord.Item) string {
	id := uuid.NewString()
	h.orders.orders[id] = &ord.Order{ID: id, UserID: userID, Status: status, Total: "0.00"}
	for i := range items {
		items[i].OrderID = id
	}
	h.orders.items[id] = items
	return id
}

//
// ---------- TESTS ----------
//

func TestCancelOrder_HappyPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := uuid.NewString()
	pid := h.addProduct(5, "10.00")
	oid := h.addOrder(uid, ord.StatusPending, ord.Item{ID: uuid.NewString(), ProductID: pid, Quantity: 2, Price: "10.00"})

	w := h.do(t, http.MethodPost, "/orders/"+oid+"/cancel", h.token(t, uid, auth.RoleUser), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp ord.CancelOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Message != "order cancelled" {
		t.Fatalf("message=%q", resp.Message)
	}
	if resp.Order.Status != ord.StatusCancelled {
		t.Fatalf("status=%s", resp.Order.Status)
	}
	if h.products.products[pid].Stock != 7 {
		t.Fatalf("expected stock 7, got %d", h.products.products[pid].Stock)
	}
}

func TestCancelOrder_NotOwner(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	pid := h.addProduct(5, "10.00")
	oid := h.addOrder(uuid.NewString(), ord.StatusPending,
		ord.Item{ID: uuid.NewString(), ProductID: pid, Quantity: 2, Price: "10.00"})

	w := h.do(t, http.MethodPost, "/orders/"+oid+"/cancel", h.token(t, uuid.NewString(), auth.RoleUser), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s (expected 401)", w.Code, w.Body.String())
	}
	if h.products.products[pid].Stock != 5 {
		t.Fatalf("stock must not change, got %d", h.products.products[pid].Stock)
	}
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := uuid.NewString()
	oid := h.addOrder(uid, ord.StatusCancelled)

	w := h.do(t, http.MethodPost, "/orders/"+oid+"/cancel", h.token(t, uid, auth.RoleUser), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", h.token(t, uuid.NewString(), auth.RoleUser), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s (expected 404)", w.Code, w.Body.String())
	}
}

func TestCancelOrder_RequiresAuth(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d (expected 401 without token)", w.Code)
	}
}

func TestCreateOrder_HappyPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := uuid.NewString()
	pid := h.addProduct(5, "15.00")

	body := fmt.Sprintf(`{"address":"Calle 1","items":[{"product_id":%q,"quantity":2}]}`, pid)
	w := h.do(t, http.MethodPost, "/orders", h.token(t, uid, auth.RoleUser), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp ord.OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Order.UserID != uid {
		t.Fatalf("order user=%s, expected %s", resp.Order.UserID, uid)
	}
	if resp.Order.Total != "30.00" {
		t.Fatalf("total=%s, expected 30.00", resp.Order.Total)
	}
	if h.products.products[pid].Stock != 3 {
		t.Fatalf("expected stock 3, got %d", h.products.products[pid].Stock)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	pid := h.addProduct(1, "10.00")
	body := fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":2}]}`, pid)
	w := h.do(t, http.MethodPost, "/orders", h.token(t, uuid.NewString(), auth.RoleUser), body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s (expected 409)", w.Code, w.Body.String())
	}
}

func TestListOrders_OnlyOwn(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := uuid.NewString()
	h.addOrder(uid, ord.StatusPending)
	h.addOrder(uuid.NewString(), ord.StatusPending)

	w := h.do(t, http.MethodGet, "/orders?limit=10", h.token(t, uid, auth.RoleUser), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []ord.Order `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items=%d, expected 1", len(resp.Items))
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/register", "", `{"username":"ana","email":"ana@example.com","password":"s3cret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected token, body=%s", w.Body.String())
	}

	// The issued token must authenticate protected routes.
	w = h.do(t, http.MethodGet, "/orders", resp.Token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("orders status=%d body=%s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d (expected 401)", w.Code)
	}
}

func TestLogout_SchemeCaseInsensitive(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	token := h.token(t, uuid.NewString(), auth.RoleUser)

	// The auth middleware accepts the scheme in any case, so logout must too.
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", w.Code, w.Body.String())
	}

	if _, err := h.sessions.Get(context.Background(), token); err == nil {
		t.Fatal("session must be invalidated after logout")
	}
	if w := h.do(t, http.MethodGet, "/orders", token, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("token still accepted after logout: status=%d", w.Code)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := h.addUser("ana", "ana@example.com", auth.RoleUser)

	w := h.do(t, http.MethodGet, "/me", h.token(t, uid, auth.RoleUser), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var u user.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if u.ID != uid || u.Email != "ana@example.com" {
		t.Fatalf("unexpected profile: %+v", u)
	}
}

func TestAdmin_UpdateAndDeleteUser(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	uid := h.addUser("ana", "ana@example.com", auth.RoleUser)

	body := `{"username":"ana2"}`
	w := h.do(t, http.MethodPut, "/admin/users/"+uid, h.token(t, uuid.NewString(), auth.RoleUser), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d (expected 403 for non-admin)", w.Code)
	}

	admin := h.token(t, uuid.NewString(), auth.RoleAdmin)
	w = h.do(t, http.MethodPut, "/admin/users/"+uid, admin, body)
	if w.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	var u user.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if u.Username != "ana2" {
		t.Fatalf("username=%q, expected ana2", u.Username)
	}

	w = h.do(t, http.MethodDelete, "/admin/users/"+uid, admin, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}
	w = h.do(t, http.MethodDelete, "/admin/users/"+uid, admin, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status=%d (expected 404)", w.Code)
	}
}

func TestAdmin_CreateProduct(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	body := `{"name":"Keyboard","price":"199.90","stock":10}`

	w := h.do(t, http.MethodPost, "/admin/products", h.token(t, uuid.NewString(), auth.RoleUser), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d (expected 403 for non-admin)", w.Code)
	}

	w = h.do(t, http.MethodPost, "/admin/products", h.token(t, uuid.NewString(), auth.RoleAdmin), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var p prod.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if p.ID == "" || p.Name != "Keyboard" {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestAdmin_InvalidPriceRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/admin/products", h.token(t, uuid.NewString(), auth.RoleAdmin),
		`{"name":"Keyboard","price":"not-a-price","stock":10}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d (expected 400)", w.Code)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/products/"+uuid.NewString(), "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d (expected 404)", w.Code)
	}
}

func TestListProducts_FeaturedFilter(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	pid := h.addProduct(3, "10.00")
	h.products.products[pid].Featured = true
	h.addProduct(3, "20.00")

	w := h.do(t, http.MethodGet, "/products?featured=true", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp prod.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != pid {
		t.Fatalf("expected only the featured product, got %+v", resp.Items)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}
