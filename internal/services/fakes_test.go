package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/events"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/payment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	cp.CartData = u.CartData.Clone()
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("email %s: %w", email, apperr.ErrNotFound)
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return apperr.ErrConflict
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdateCart(_ context.Context, id string, cart models.CartData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.CartData = cart.Clone()
	return nil
}

func (m *memUsers) add(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CartData == nil {
		u.CartData = models.NewCartData()
	}
	m.byID[u.ID] = &u
	return &u
}

type memOrders struct {
	mu     sync.Mutex
	byID   map[string]*models.Order
	nextID int
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[string]*models.Order{}}
}

func (m *memOrders) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = fmt.Sprintf("order-%d", m.nextID)
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) List(context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	all, _ := m.List(ctx)
	out := make([]models.Order, 0)
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) SetPayment(_ context.Context, id string, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Payment = paid
	return nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrders) Delete(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memOrders) get(id string) (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

type fakeGateway struct {
	requests   []payment.CheckoutRequest
	sessionErr error
	balance    float64
	balanceErr error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (g *fakeGateway) AvailableBalance(context.Context) (float64, error) {
	return g.balance, g.balanceErr
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(_ context.Context, userID, event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, userID+":"+event)
	return nil
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) PublishOrder(_ context.Context, e events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

type sentMail struct {
	to, subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return nil
}

type stubLocker struct {
	err   error
	locks int
}

func (l *stubLocker) Lock(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	return func() {}, nil
}

type stubTokens struct{}

func (stubTokens) GenerateUserToken(userID string) (string, error) {
	return "user-token-" + userID, nil
}

func (stubTokens) GenerateAdminToken(userID string) (string, error) {
	return "admin-token-" + userID, nil
}

type memProducts struct {
	mu     sync.Mutex
	byID   map[string]models.Product
	nextID int
}

func newMemProducts() *memProducts {
	return &memProducts{byID: map[string]models.Product{}}
}

func (m *memProducts) Create(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = fmt.Sprintf("product-%d", m.nextID)
	m.byID[p.ID] = *p
	return nil
}

func (m *memProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) List(context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memImages struct {
	uploaded []string
	deleted  []string
	failOn   int
}

func (m *memImages) Upload(_ context.Context, img ImageUpload) (string, error) {
	if m.failOn > 0 && len(m.uploaded)+1 == m.failOn {
		return "", errors.New("bucket unavailable")
	}
	url := "https://img.test/" + img.Filename
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *memImages) Delete(_ context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

type stubIndex struct {
	indexed   []string
	removed   []string
	result    []models.Product
	searchErr error
}

func (s *stubIndex) Index(_ context.Context, p models.Product) error {
	s.indexed = append(s.indexed, p.ID)
	return nil
}

func (s *stubIndex) Delete(_ context.Context, id string) error {
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubIndex) Search(context.Context, string) ([]models.Product, error) {
	return s.result, s.searchErr
}

func upload(name string) ImageUpload {
	return ImageUpload{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}
