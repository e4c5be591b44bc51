package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/shopspring/decimal"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uint]*domain.User)}
}

func (r *memUsers) GetByTelegramID(_ context.Context, telegramUserID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.TelegramUserID == telegramUserID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUsers) GetByID(_ context.Context, userID uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUsers) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *memUsers) SetPremiumFlag(_ context.Context, userID uint, premium bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.IsPremium = premium
	return nil
}

type memSubs struct {
	subs []domain.Subscription
	err  error
}

func (r *memSubs) add(sub domain.Subscription) {
	sub.ID = uint(len(r.subs) + 1)
	r.subs = append(r.subs, sub)
}

func (r *memSubs) LatestForUser(_ context.Context, userID uint) (*domain.Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i].UserID == userID {
			sub := r.subs[i]
			return &sub, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubs) LatestByUser(_ context.Context) (map[uint]domain.Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	latest := make(map[uint]domain.Subscription)
	for _, sub := range r.subs {
		latest[sub.UserID] = sub
	}
	return latest, nil
}

type memAlerts struct {
	mu       sync.Mutex
	users    *memUsers
	nextID   uint
	alerts   map[uint]*domain.Alert
	listErr  error
	fireErr  error
	fireHook func()
}

func newMemAlerts(users *memUsers) *memAlerts {
	return &memAlerts{users: users, alerts: make(map[uint]*domain.Alert)}
}

func (r *memAlerts) Create(_ context.Context, alert *domain.Alert, maxEnabled int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	owner, ok := r.users.users[alert.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if alert.Enabled && maxEnabled >= 0 && r.countEnabled(alert.UserID, time.Now().UTC()) >= int64(maxEnabled) {
		return domain.ErrQuotaExceeded
	}
	seq := owner.LastAlertSeq
	for _, existing := range r.alerts {
		if existing.UserID == alert.UserID && existing.UserSeq > seq {
			seq = existing.UserSeq
		}
	}
	seq++
	owner.LastAlertSeq = seq

	r.nextID++
	alert.ID = r.nextID
	alert.UserSeq = seq
	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *memAlerts) ListByUser(_ context.Context, userID uint) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var alerts []domain.Alert
	for _, alert := range r.alerts {
		if alert.UserID == userID {
			alerts = append(alerts, *alert)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].UserSeq < alerts[j].UserSeq })
	return alerts, nil
}

func (r *memAlerts) GetBySeq(_ context.Context, userID uint, seq int) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert := r.bySeq(userID, seq)
	if alert == nil {
		return nil, domain.ErrNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *memAlerts) SetEnabled(_ context.Context, userID uint, seq int, enabled bool, maxEnabled int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert := r.bySeq(userID, seq)
	if alert == nil {
		return domain.ErrNotFound
	}
	if alert.Enabled == enabled {
		return nil
	}
	if enabled && maxEnabled >= 0 && r.countEnabled(userID, time.Now().UTC()) >= int64(maxEnabled) {
		return domain.ErrQuotaExceeded
	}
	alert.Enabled = enabled
	return nil
}

func (r *memAlerts) DeleteBySeq(_ context.Context, userID uint, seq int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert := r.bySeq(userID, seq)
	if alert == nil {
		return domain.ErrNotFound
	}
	delete(r.alerts, alert.ID)
	return nil
}

func (r *memAlerts) CountEnabled(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countEnabled(userID, time.Now().UTC()), nil
}

func (r *memAlerts) ListDue(_ context.Context, now time.Time) ([]domain.DueAlert, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []domain.DueAlert
	for _, alert := range r.alerts {
		if !alert.Active(now) {
			continue
		}
		owner := r.users.users[alert.UserID]
		due = append(due, domain.DueAlert{Alert: *alert, TelegramUserID: owner.TelegramUserID})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r *memAlerts) RecordFire(_ context.Context, alertID uint, now time.Time) (bool, error) {
	if r.fireHook != nil {
		r.fireHook()
	}
	if r.fireErr != nil {
		return false, r.fireErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[alertID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !alert.Active(now) || !domain.CooldownEligible(alert.LastFiredAt, alert.Cooldown(), now) {
		return false, nil
	}
	firedAt := now
	alert.LastFiredAt = &firedAt
	return true, nil
}

func (r *memAlerts) get(alertID uint) domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.alerts[alertID]
}

func (r *memAlerts) bySeq(userID uint, seq int) *domain.Alert {
	for _, alert := range r.alerts {
		if alert.UserID == userID && alert.UserSeq == seq {
			return alert
		}
	}
	return nil
}

func (r *memAlerts) countEnabled(userID uint, now time.Time) int64 {
	var count int64
	for _, alert := range r.alerts {
		if alert.UserID == userID && alert.Active(now) {
			count++
		}
	}
	return count
}

type memLeases struct {
	mu     sync.Mutex
	owner  string
	expiry time.Time
	err    error
}

func (r *memLeases) TryAcquire(_ context.Context, _, owner string, ttl time.Duration, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.owner != "" && r.owner != owner && r.expiry.After(now) {
		return false, nil
	}
	r.owner = owner
	r.expiry = now.Add(ttl)
	return true, nil
}

func (r *memLeases) Release(_ context.Context, _, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == owner {
		r.owner = ""
	}
	return nil
}

func (r *memLeases) holder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

type fakeFeed struct {
	mu       sync.Mutex
	prices   map[string]string
	failures map[string]error
	calls    [][]string
}

func (f *fakeFeed) set(symbol, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = make(map[string]string)
	}
	f.prices[symbol] = price
}

func (f *fakeFeed) Prices(_ context.Context, symbols []string) (map[string]domain.Quote, map[string]error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), symbols...))
	quotes := make(map[string]domain.Quote)
	failures := make(map[string]error)
	for _, symbol := range symbols {
		if err, ok := f.failures[symbol]; ok {
			failures[symbol] = err
			continue
		}
		price, ok := f.prices[symbol]
		if !ok {
			failures[symbol] = domain.ErrSymbolNotFound
			continue
		}
		quotes[symbol] = domain.Quote{Symbol: symbol, Price: decimal.RequireFromString(price), ObservedAt: time.Now().UTC()}
	}
	return quotes, failures
}

type sentMessage struct {
	telegramUserID int64
	text           string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, telegramUserID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{telegramUserID: telegramUserID, text: text})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type fakePublisher struct {
	events []domain.FiredEvent
	err    error
}

func (p *fakePublisher) PublishFired(_ context.Context, event domain.FiredEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeSink struct {
	stored map[string]domain.Quote
}

func (s *fakeSink) Store(_ context.Context, quotes map[string]domain.Quote) error {
	s.stored = quotes
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(start time.Time) *clock {
	return &clock{now: start}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")
