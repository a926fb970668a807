package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/internal/gateway"
	"agro-booking/pkg/queue"
	"agro-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

// ==================== IN-MEMORY STORE ====================

type farmCounters struct {
	bookings int64
	revenue  decimal.Decimal
}

type store struct {
	mu         sync.Mutex
	farms      map[uuid.UUID]entity.Farm
	activities map[uuid.UUID]entity.Activity
	bookings   map[uuid.UUID]entity.Booking
	payments   map[uuid.UUID]entity.Payment
	stats      map[uuid.UUID]farmCounters
	history    []entity.StatusChange

	// fail makes the named operation return the error, e.g. "stats.increment".
	fail map[string]error
}

func newStore() *store {
	return &store{
		farms:      map[uuid.UUID]entity.Farm{},
		activities: map[uuid.UUID]entity.Activity{},
		bookings:   map[uuid.UUID]entity.Booking{},
		payments:   map[uuid.UUID]entity.Payment{},
		stats:      map[uuid.UUID]farmCounters{},
		fail:       map[string]error{},
	}
}

type snapshot struct {
	bookings map[uuid.UUID]entity.Booking
	payments map[uuid.UUID]entity.Payment
	stats    map[uuid.UUID]farmCounters
	history  []entity.StatusChange
}

func (s *store) snapshot() snapshot {
	snap := snapshot{
		bookings: make(map[uuid.UUID]entity.Booking, len(s.bookings)),
		payments: make(map[uuid.UUID]entity.Payment, len(s.payments)),
		stats:    make(map[uuid.UUID]farmCounters, len(s.stats)),
		history:  append([]entity.StatusChange(nil), s.history...),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = cloneBooking(v)
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.stats {
		snap.stats[k] = v
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.stats = snap.stats
	s.history = snap.history
}

func (s *store) setFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *store) booking(id uuid.UUID) entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBooking(s.bookings[id])
}

func (s *store) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *store) paymentList() []entity.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func (s *store) counters(farmID uuid.UUID) farmCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[farmID]
}

func (s *store) historyOf(bookingID uuid.UUID) []entity.StatusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.StatusChange
	for _, h := range s.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out
}

func cloneBooking(b entity.Booking) entity.Booking {
	b.Lines = append([]entity.BookingLine(nil), b.Lines...)
	if b.Cancellation != nil {
		c := *b.Cancellation
		b.Cancellation = &c
	}
	return b
}

// ==================== TRANSACTOR ====================

type txCtxKey struct{}

// fakeTx serialises top-level transactions and restores the store when fn fails.
type fakeTx struct {
	store *store
	mu    sync.Mutex
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txCtxKey{}) != nil {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.store.mu.Lock()
	snap := t.store.snapshot()
	t.store.mu.Unlock()

	if err := fn(context.WithValue(ctx, txCtxKey{}, true)); err != nil {
		t.store.mu.Lock()
		t.store.restore(snap)
		t.store.mu.Unlock()
		return err
	}
	return nil
}

// ==================== REPOSITORIES ====================

type fakeFarmRepo struct{ s *store }

func (r *fakeFarmRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Farm, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.farms[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

type fakeActivityRepo struct{ s *store }

func (r *fakeActivityRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type fakeBookingRepo struct{ s *store }

func (r *fakeBookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["booking.create"]; err != nil {
		return err
	}
	for _, b := range r.s.bookings {
		if b.ConfirmationCode == booking.ConfirmationCode {
			return repository.ErrDuplicateConfirmationCode
		}
	}
	for i := range booking.Lines {
		if booking.Lines[i].ID == uuid.Nil {
			booking.Lines[i].ID = uuid.New()
		}
		booking.Lines[i].BookingID = booking.ID
		booking.Lines[i].Position = i
	}
	r.s.bookings[booking.ID] = cloneBooking(*booking)
	return nil
}

func (r *fakeBookingRepo) find(match func(entity.Booking) bool) *entity.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if match(b) {
			c := cloneBooking(b)
			return &c
		}
	}
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.Lock()
	err := r.s.fail["booking.find"]
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.find(func(b entity.Booking) bool { return b.ID == id }), nil
}

func (r *fakeBookingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeBookingRepo) FindByConfirmationCode(_ context.Context, code string) (*entity.Booking, error) {
	return r.find(func(b entity.Booking) bool { return b.ConfirmationCode == code }), nil
}

func (r *fakeBookingRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.UserID == userID {
			c := cloneBooking(b)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeBookingRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to entity.BookingStatus, cancellation *entity.Cancellation, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	if cancellation != nil {
		c := *cancellation
		b.Cancellation = &c
	}
	r.s.bookings[id] = b
	return true, nil
}

func (r *fakeBookingRepo) MarkPaid(_ context.Context, id uuid.UUID, payment entity.BookingPayment, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != entity.BookingStatusPending {
		return false, nil
	}
	b.Status = entity.BookingStatusConfirmed
	b.Payment = payment
	b.UpdatedAt = at
	r.s.bookings[id] = b
	return true, nil
}

func (r *fakeBookingRepo) UpdateDetails(_ context.Context, booking *entity.Booking) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[booking.ID]
	if !ok || b.Status != entity.BookingStatusPending {
		return false, nil
	}
	b.ContactInfo = booking.ContactInfo
	b.GroupDetails = booking.GroupDetails
	b.Pricing = booking.Pricing
	b.Currency = booking.Currency
	b.UpdatedAt = booking.UpdatedAt
	r.s.bookings[booking.ID] = b
	return true, nil
}

func (r *fakeBookingRepo) ReplaceLines(_ context.Context, bookingID uuid.UUID, lines []entity.BookingLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.bookings[bookingID]
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		lines[i].BookingID = bookingID
		lines[i].Position = i
	}
	b.Lines = append([]entity.BookingLine(nil), lines...)
	r.s.bookings[bookingID] = b
	return nil
}

func (r *fakeBookingRepo) AddStatusChange(_ context.Context, change *entity.StatusChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["booking.history"]; err != nil {
		return err
	}
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	r.s.history = append(r.s.history, *change)
	return nil
}

func (r *fakeBookingRepo) FindStatusHistory(_ context.Context, bookingID uuid.UUID) ([]entity.StatusChange, error) {
	return r.s.historyOf(bookingID), nil
}

type fakePaymentRepo struct{ s *store }

func (r *fakePaymentRepo) InsertIfAbsent(_ context.Context, payment *entity.Payment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["payment.insert"]; err != nil {
		return false, err
	}
	for _, p := range r.s.payments {
		if p.ProviderTransactionID == payment.ProviderTransactionID {
			return false, nil
		}
	}
	r.s.payments[payment.ID] = *payment
	return true, nil
}

func (r *fakePaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ProviderTransactionID == transactionID {
			c := p
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) ExistsForBooking(_ context.Context, bookingID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.BookingID == bookingID && p.Status == entity.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID {
			c := p
			out = append(out, &c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakePaymentRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.payments {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakePaymentRepo) MarkApplied(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.AppliedAt != nil {
		return false, nil
	}
	p.AppliedAt = &at
	r.s.payments[id] = p
	return true, nil
}

func (r *fakePaymentRepo) HoldPayout(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.payments[id]
	p.PayoutStatus = entity.PayoutStatusOnHold
	p.UpdatedAt = at
	r.s.payments[id] = p
	return nil
}

type fakeFarmStatsRepo struct{ s *store }

func (r *fakeFarmStatsRepo) Increment(_ context.Context, farmID uuid.UUID, bookings int64, revenue decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["stats.increment"]; err != nil {
		return err
	}
	c := r.s.stats[farmID]
	c.bookings += bookings
	c.revenue = c.revenue.Add(revenue)
	r.s.stats[farmID] = c
	return nil
}

// ==================== EXTERNAL DEPENDENCIES ====================

const validSignature = "t=1,v1=valid"

type fakeGateway struct {
	CreateIntentFunc func(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*gateway.Intent, error)
	ParseEventFunc   func(payload []byte, signature string) (*gateway.PaymentEvent, error)
}

func (g *fakeGateway) Name() string { return "stripe" }

func (g *fakeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*gateway.Intent, error) {
	if g.CreateIntentFunc != nil {
		return g.CreateIntentFunc(ctx, amountMinor, currency, metadata)
	}
	return &gateway.Intent{ProviderID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

// ParseEvent accepts validSignature and decodes the payload as a PaymentEvent.
func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*gateway.PaymentEvent, error) {
	if g.ParseEventFunc != nil {
		return g.ParseEventFunc(payload, signature)
	}
	if signature != validSignature {
		return nil, gateway.ErrInvalidSignature
	}
	var event gateway.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gateway.ErrMalformedEvent
	}
	return &event, nil
}

type publishedEvent struct {
	key string
	msg entity.Notification
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakeEvents) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	msg, _ := v.(entity.Notification)
	p.events = append(p.events, publishedEvent{key: key, msg: msg})
	return nil
}

func (p *fakeEvents) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

type fakeRetries struct {
	mu    sync.Mutex
	tasks []*queue.Task
	err   error
}

func (q *fakeRetries) Publish(_ context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeRetries) published() []*queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*queue.Task(nil), q.tasks...)
}

// ==================== HARNESS ====================

type harness struct {
	store   *store
	repo    *repository.Repository
	svc     *Service
	gw      *fakeGateway
	events  *fakeEvents
	retries *fakeRetries
	now     time.Time
	codes   []string
}

func testConfig() *utils.Config {
	return &utils.Config{
		Pricing: utils.PricingConfig{
			TaxRate:         0.12,
			CommissionRate:  0.10,
			PayoutDelayDays: 7,
			Precision:       2,
		},
	}
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()

	s := newStore()
	h := &harness{
		store:   s,
		gw:      &fakeGateway{},
		events:  &fakeEvents{},
		retries: &fakeRetries{},
		now:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	h.repo = &repository.Repository{
		Tx:        &fakeTx{store: s},
		Farm:      &fakeFarmRepo{s: s},
		Activity:  &fakeActivityRepo{s: s},
		Booking:   &fakeBookingRepo{s: s},
		Payment:   &fakePaymentRepo{s: s},
		FarmStats: &fakeFarmStatsRepo{s: s},
	}

	var codeMu sync.Mutex
	deps := Deps{
		Gateway: h.gw,
		Events:  h.events,
		Retries: h.retries,
		Now:     func() time.Time { return h.now },
		NewCode: func() (string, error) {
			codeMu.Lock()
			defer codeMu.Unlock()
			if len(h.codes) > 0 {
				code := h.codes[0]
				h.codes = h.codes[1:]
				return code, nil
			}
			return utils.GenerateConfirmationCode()
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h.svc = NewService(h.repo, deps, testConfig(), zaptest.NewLogger(t))
	return h
}

func (h *harness) seedFarm(ownerID uuid.UUID, mutate ...func(*entity.Farm)) entity.Farm {
	f := entity.Farm{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: h.now, UpdatedAt: h.now},
		OwnerID:  ownerID,
		Name:     "Green Valley",
		Status:   entity.FarmStatusApproved,
		IsActive: true,
	}
	for _, m := range mutate {
		m(&f)
	}
	h.store.mu.Lock()
	h.store.farms[f.ID] = f
	h.store.mu.Unlock()
	return f
}

func (h *harness) seedActivity(farmID uuid.UUID, mutate ...func(*entity.Activity)) entity.Activity {
	a := entity.Activity{
		Base:            entity.Base{ID: uuid.New(), CreatedAt: h.now, UpdatedAt: h.now},
		FarmID:          farmID,
		Name:            "Strawberry picking",
		AdultPrice:      decimal.NewFromInt(20),
		Currency:        "USD",
		MinParticipants: 1,
		MaxParticipants: 20,
		IsActive:        true,
	}
	for _, m := range mutate {
		m(&a)
	}
	h.store.mu.Lock()
	h.store.activities[a.ID] = a
	h.store.mu.Unlock()
	return a
}

// seedBooking stores a booking directly, bypassing the service.
func (h *harness) seedBooking(userID, farmID uuid.UUID, status entity.BookingStatus, total string) entity.Booking {
	amount := decimal.RequireFromString(total)
	b := entity.Booking{
		BaseNoDelete:     entity.BaseNoDelete{ID: uuid.New(), CreatedAt: h.now, UpdatedAt: h.now},
		ConfirmationCode: uuid.NewString()[:12],
		UserID:           userID,
		FarmID:           farmID,
		ContactInfo:      entity.ContactInfo{Name: "Ana", Email: "ana@example.com", Phone: "+6281234567"},
		Pricing:          entity.Pricing{Subtotal: amount, Taxes: decimal.Zero, Total: amount},
		Currency:         "USD",
		Status:           status,
		Payment:          entity.BookingPayment{Status: entity.PaymentStatusPending},
	}
	h.store.mu.Lock()
	h.store.bookings[b.ID] = b
	h.store.mu.Unlock()
	return b
}

func tourist() entity.Caller {
	return entity.NewCaller(uuid.New(), "tourist@example.com", entity.RoleTourist)
}

func farmer(id uuid.UUID) entity.Caller {
	return entity.NewCaller(id, "farmer@example.com", entity.RoleFarmer)
}
