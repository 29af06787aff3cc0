package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
	"ticketpay/internal/gateway"
	"ticketpay/pkg/contracts"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

type memState struct {
	orders         map[int64]*domain.Order
	records        []*domain.PaymentRecord
	fees           []domain.OrderApplicationFee
	affiliateSales map[int64]decimal.Decimal
	affiliateCount map[int64]int
	sold           map[int64]int
	outbox         []contracts.Message
	inbox          map[string]string
}

func (s memState) clone() memState {
	c := memState{
		orders:         make(map[int64]*domain.Order, len(s.orders)),
		records:        make([]*domain.PaymentRecord, 0, len(s.records)),
		fees:           append([]domain.OrderApplicationFee(nil), s.fees...),
		affiliateSales: make(map[int64]decimal.Decimal, len(s.affiliateSales)),
		affiliateCount: make(map[int64]int, len(s.affiliateCount)),
		sold:           make(map[int64]int, len(s.sold)),
		outbox:         append([]contracts.Message(nil), s.outbox...),
		inbox:          make(map[string]string, len(s.inbox)),
	}
	for id, o := range s.orders {
		c.orders[id] = cloneOrder(o)
	}
	for _, r := range s.records {
		cp := *r
		c.records = append(c.records, &cp)
	}
	for k, v := range s.affiliateSales {
		c.affiliateSales[k] = v
	}
	for k, v := range s.affiliateCount {
		c.affiliateCount[k] = v
	}
	for k, v := range s.sold {
		c.sold[k] = v
	}
	for k, v := range s.inbox {
		c.inbox[k] = v
	}
	return c
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	cp.Attendees = append([]domain.Attendee(nil), o.Attendees...)
	cp.Invoices = append([]domain.Invoice(nil), o.Invoices...)
	return &cp
}

type txDepthKey struct{}

// memStore is an in-memory stand-in for the Postgres repositories. WithTx snapshots state and
// restores it on error; top-level transactions are serialized like a row lock would.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	memState

	events  map[int64]*domain.Event
	configs map[int64]*domain.AccountConfiguration

	failInventory error
	failEmit      map[string]error
	failUpdate    error
	nextID        int64
}

func newMemStore() *memStore {
	return &memStore{
		memState: memState{
			orders:         map[int64]*domain.Order{},
			affiliateSales: map[int64]decimal.Decimal{},
			affiliateCount: map[int64]int{},
			sold:           map[int64]int{},
			inbox:          map[string]string{},
		},
		events:   map[int64]*domain.Event{},
		configs:  map[int64]*domain.AccountConfiguration{},
		failEmit: map[string]error{},
		nextID:   1000,
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txDepthKey{}) == nil {
		m.txMu.Lock()
		defer m.txMu.Unlock()
		ctx = context.WithValue(ctx, txDepthKey{}, true)
	}

	m.mu.Lock()
	snapshot := m.memState.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.memState = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// seed stores a RESERVED 100.00 INR order with two attendees, one invoice and an affiliate,
// owned by an event whose account charges 5% + 1.
func (m *memStore) seed() *domain.Order {
	affiliate := int64(7)
	reservedUntil := testNow.Add(15 * time.Minute)
	order := &domain.Order{
		ID:            1,
		ShortID:       "o_abc123",
		EventID:       10,
		Status:        domain.OrderStatusReserved,
		PaymentStatus: domain.PaymentStatusAwaitingPayment,
		TotalGross:    decimal.RequireFromString("100.00"),
		Currency:      "INR",
		SessionID:     "sess-1",
		AffiliateID:   &affiliate,
		ReservedUntil: &reservedUntil,
		Items: []domain.OrderItem{
			{ID: 1, OrderID: 1, ProductID: 3, ProductPriceID: 30, Quantity: 2, Price: decimal.RequireFromString("50.00")},
		},
		Attendees: []domain.Attendee{
			{ID: 1, OrderID: 1, Status: domain.AttendeeStatusAwaitingPayment},
			{ID: 2, OrderID: 1, Status: domain.AttendeeStatusAwaitingPayment},
		},
		Invoices: []domain.Invoice{{ID: 5, OrderID: 1, Status: domain.InvoiceStatusUnpaid}},
	}
	m.orders[order.ID] = order
	m.events[10] = &domain.Event{
		ID: 10, AccountID: 2, Title: "Launch Night",
		Organizer: domain.Organizer{ID: 4, Name: "Acme Events", Email: "hello@acme.test"},
		Settings:  domain.EventSettings{SupportEmail: "support@acme.test"},
	}
	pct, fixed := decimal.NewFromInt(5), decimal.NewFromInt(1)
	m.configs[10] = &domain.AccountConfiguration{ID: 1, AccountID: 2, FeePercentage: &pct, FeeFixed: &fixed}
	return cloneOrder(order)
}

func (m *memStore) addRecord(rec domain.PaymentRecord) *domain.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, &rec)
	cp := rec
	return &cp
}

func (m *memStore) order(id int64) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.orders[id])
}

func (m *memStore) feeRows() []domain.OrderApplicationFee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderApplicationFee(nil), m.fees...)
}

func (m *memStore) messages(kind string) []contracts.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contracts.Message
	for _, msg := range m.outbox {
		if msg.MessageType() == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (m *memStore) record(id int64) *domain.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			cp := *r
			return &cp
		}
	}
	return nil
}

// OrderRepository

func (m *memStore) FindOrderForUpdate(_ context.Context, orderID, eventID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.EventID != eventID {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *memStore) FindOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *memStore) FindOrderByShortID(_ context.Context, shortID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ShortID == shortID {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (m *memStore) FindEvent(_ context.Context, eventID int64) (*domain.Event, error) {
	return m.events[eventID], nil
}

func (m *memStore) FindAccountConfiguration(_ context.Context, eventID int64) (*domain.AccountConfiguration, error) {
	return m.configs[eventID], nil
}

func (m *memStore) CompleteOrder(_ context.Context, orderID int64, provider domain.PaymentProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = domain.OrderStatusCompleted
	o.PaymentStatus = domain.PaymentStatusReceived
	o.PaymentProvider = &provider
	return nil
}

func (m *memStore) MarkLatestInvoicePaid(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv := m.orders[orderID].LatestInvoice(); inv != nil {
		inv.Status = domain.InvoiceStatusPaid
	}
	return nil
}

func (m *memStore) IncrementAffiliateSales(_ context.Context, affiliateID int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affiliateSales[affiliateID] = m.affiliateSales[affiliateID].Add(amount)
	m.affiliateCount[affiliateID]++
	return nil
}

func (m *memStore) ActivateAttendees(_ context.Context, orderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.orders[orderID].Attendees {
		a := &m.orders[orderID].Attendees[i]
		if a.Status == domain.AttendeeStatusAwaitingPayment {
			a.Status = domain.AttendeeStatusActive
			n++
		}
	}
	return n, nil
}

// InventoryUpdater

func (m *memStore) UpdateQuantitiesFromOrder(_ context.Context, order *domain.Order) error {
	if m.failInventory != nil {
		return m.failInventory
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range order.Items {
		m.sold[it.ProductPriceID] += it.Quantity
	}
	return nil
}

// FeeLedger

func (m *memStore) CreateOrderApplicationFee(_ context.Context, fee domain.OrderApplicationFee) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	fee.ID = m.nextID
	m.fees = append(m.fees, fee)
	return fee.ID, nil
}

// Emitter

func (m *memStore) Emit(_ context.Context, msg contracts.Message) error {
	if err := m.failEmit[msg.MessageType()]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, msg)
	return nil
}

// PaymentRecordStore

func (m *memStore) Create(_ context.Context, rec *domain.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ExternalOrderID == rec.ExternalOrderID {
			return domain.ErrDuplicateExternalOrder
		}
	}
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *memStore) FindByExternalOrderID(_ context.Context, externalOrderID string) (*domain.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ExternalOrderID == externalOrderID && r.DeletedAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByOrder(_ context.Context, orderID int64, externalOrderID string) (*domain.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.OrderID != orderID || r.DeletedAt != nil {
			continue
		}
		if externalOrderID != "" && r.ExternalOrderID != externalOrderID {
			continue
		}
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) FindCapturedByOrder(_ context.Context, orderID int64) (*domain.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.OrderID != orderID || r.DeletedAt != nil || r.ExternalPaymentID == nil || *r.ExternalPaymentID == "" {
			continue
		}
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) Update(_ context.Context, id int64, upd domain.PaymentRecordUpdate) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID != id {
			continue
		}
		if upd.ExternalPaymentID != nil {
			r.ExternalPaymentID = upd.ExternalPaymentID
		}
		if upd.Signature != nil {
			r.Signature = upd.Signature
		}
		if upd.Status != nil {
			r.Status = *upd.Status
		}
		if upd.Method != nil {
			r.Method = *upd.Method
		}
		if upd.ErrorDetails != nil {
			r.ErrorDetails = upd.ErrorDetails
		}
		return nil
	}
	return domain.ErrPaymentRecordNotFound
}

// WebhookInbox

func (m *memStore) Seen(_ context.Context, deliveryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inbox[deliveryID]
	return ok, nil
}

func (m *memStore) Record(_ context.Context, deliveryID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inbox[deliveryID]; ok {
		return false, nil
	}
	m.inbox[deliveryID] = eventType
	return true, nil
}

type refundCall struct {
	PaymentID   string
	AmountMinor int64
}

// fakeGateway serves as both factory and client.
type fakeGateway struct {
	mu        sync.Mutex
	clientErr error
	createErr error
	fetchErr  error
	refundErr error

	orderID     string
	orderStatus string
	payments    map[string]*gateway.ProviderPayment

	created []gateway.CreateOrderRequest
	fetched []string
	refunds []refundCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orderID:     "order_Nx81KqPzA1",
		orderStatus: "created",
		payments:    map[string]*gateway.ProviderPayment{},
	}
}

func (g *fakeGateway) CreateClient() (gateway.Client, error) {
	if g.clientErr != nil {
		return nil, g.clientErr
	}
	return g, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.ProviderOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &gateway.ProviderOrder{
		ID: g.orderID, AmountMinor: req.AmountMinor, Currency: req.Currency,
		Status: g.orderStatus, Receipt: req.Receipt,
	}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*gateway.ProviderPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, paymentID)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("BAD_REQUEST_ERROR: The id provided does not exist")
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, paymentID string, amountMinor *int64) (*gateway.ProviderRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	amount := int64(0)
	if amountMinor != nil {
		amount = *amountMinor
	}
	g.refunds = append(g.refunds, refundCall{PaymentID: paymentID, AmountMinor: amount})
	return &gateway.ProviderRefund{ID: "rfnd_1", PaymentID: paymentID, AmountMinor: amount, Status: "processed"}, nil
}
