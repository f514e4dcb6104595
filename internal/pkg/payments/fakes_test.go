package payments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"coachfit/app/models"
)

// fakeRepo is an in-memory Repository double. Missing rows surface as
// gorm.ErrRecordNotFound, matching the real GORM-backed repository.
type fakeRepo struct {
	mu sync.Mutex

	users         map[uint]models.User
	accounts      map[uint]models.CoachAccount
	invitations   map[string]models.PaymentInvitation
	subs          map[string]models.Subscription
	coachStudents map[[2]uint]string
	webhookEvents map[string]models.WebhookEvent

	invSeq     uint
	subSeq     uint
	webhookSeq uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:         map[uint]models.User{},
		accounts:      map[uint]models.CoachAccount{},
		invitations:   map[string]models.PaymentInvitation{},
		subs:          map[string]models.Subscription{},
		coachStudents: map[[2]uint]string{},
		webhookEvents: map[string]models.WebhookEvent{},
	}
}

func (r *fakeRepo) addUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *fakeRepo) addAccount(a models.CoachAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.UserID] = a
}

func (r *fakeRepo) addInvitation(inv models.PaymentInvitation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invSeq++
	if inv.ID == 0 {
		inv.ID = r.invSeq
	}
	r.invitations[inv.Token] = inv
}

func (r *fakeRepo) GetUserByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeRepo) GetUserByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetCoachAccountByUserID(coachID uint) (*models.CoachAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[coachID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *fakeRepo) GetCoachAccountByCustomerID(customerID string) (*models.CoachAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ProviderCustomerID == customerID && customerID != "" {
			out := a
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SaveCoachAccount(account *models.CoachAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.UserID] = *account
	return nil
}

func (r *fakeRepo) ListCoachAccountsForResync() ([]models.CoachAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CoachAccount
	for _, a := range r.accounts {
		if a.ProviderCustomerID != "" || a.SubMerchantAccountID != "" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *fakeRepo) CreatePendingInvitation(inv *models.PaymentInvitation) (bool, *models.PaymentInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invitations {
		if existing.PendingKey != nil && inv.PendingKey != nil && *existing.PendingKey == *inv.PendingKey {
			out := existing
			return false, &out, nil
		}
	}
	r.invSeq++
	inv.ID = r.invSeq
	r.invitations[inv.Token] = *inv
	out := *inv
	return true, &out, nil
}

func (r *fakeRepo) GetInvitationByToken(token string) (*models.PaymentInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &inv, nil
}

func (r *fakeRepo) ExpireInvitationIfDue(token string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[token]
	if !ok || inv.Status != models.InvitationStatusPending || now.Before(inv.ExpiresAt) {
		return false, nil
	}
	inv.Status = models.InvitationStatusExpired
	inv.PendingKey = nil
	r.invitations[token] = inv
	return true, nil
}

func (r *fakeRepo) CompleteInvitation(token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[token]
	if !ok || inv.Status != models.InvitationStatusPending {
		return nil
	}
	inv.Status = models.InvitationStatusCompleted
	inv.PendingKey = nil
	inv.CompletedAt = &at
	r.invitations[token] = inv
	return nil
}

func (r *fakeRepo) CancelInvitation(coachID uint, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[token]
	if !ok || inv.CoachID != coachID || inv.Status != models.InvitationStatusPending {
		return false, nil
	}
	inv.Status = models.InvitationStatusCanceled
	inv.PendingKey = nil
	r.invitations[token] = inv
	return true, nil
}

func (r *fakeRepo) ListInvitationsByCoach(coachID uint) ([]models.PaymentInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentInvitation
	for _, inv := range r.invitations {
		if inv.CoachID == coachID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.subs[sub.ProviderSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		r.subSeq++
		sub.ID = r.subSeq
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	r.subs[sub.ProviderSubscriptionID] = *sub
	return nil
}

func (r *fakeRepo) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.ID == id {
			out := sub
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[providerSubscriptionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sub, nil
}

func (r *fakeRepo) LatestSubscriptionForStudent(studentID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Subscription
	for _, sub := range r.subs {
		sub := sub
		if sub.StudentID == nil || *sub.StudentID != studentID {
			continue
		}
		if latest == nil || sub.UpdatedAt.After(latest.UpdatedAt) {
			latest = &sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (r *fakeRepo) UpsertCoachStudent(coachID, studentID uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coachStudents[[2]uint{coachID, studentID}] = status
	return nil
}

func (r *fakeRepo) SetCoachStudentStatus(coachID, studentID uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coachStudents[[2]uint{coachID, studentID}]; ok {
		r.coachStudents[[2]uint{coachID, studentID}] = status
	}
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := r.webhookEvents[key]; ok {
		out := existing
		return false, &out, nil
	}
	r.webhookSeq++
	event.ID = r.webhookSeq
	r.webhookEvents[key] = *event
	out := *event
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for key, ev := range r.webhookEvents {
		if ev.ID == id {
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			r.webhookEvents[key] = ev
		}
	}
	return nil
}

var _ Repository = (*fakeRepo)(nil)

// fakeGateway is a scripted Gateway double. Every call fails with err when it
// is set; otherwise responses come from the seeded maps. Creation calls are
// recorded for assertions.
type fakeGateway struct {
	mu sync.Mutex

	err error

	subs     map[string]*ProviderSubscription
	sessions map[string]*CheckoutSession

	accounts map[string]*Account

	createdProducts []string
	createdPrices   []Price

	lastCheckoutSubAccount string
	lastCheckoutParams     CheckoutSessionParams

	canceledIDs       []string
	cancelAtPeriodEnd []string

	getSubscriptionCalls int

	seq int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subs:     map[string]*ProviderSubscription{},
		sessions: map[string]*CheckoutSession{},
		accounts: map[string]*Account{},
	}
}

func (g *fakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *fakeGateway) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	acct := &Account{ID: g.nextID("acct"), Email: params.Email}
	g.accounts[acct.ID] = acct
	return acct, nil
}

func (g *fakeGateway) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	acct, ok := g.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	return acct, nil
}

func (g *fakeGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &AccountLink{URL: "https://connect.example/" + accountID}, nil
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &Customer{ID: g.nextID("cus"), Email: email, Name: name}, nil
}

func (g *fakeGateway) CreateProduct(ctx context.Context, subAccount, name string, metadata map[string]string) (*Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.createdProducts = append(g.createdProducts, name)
	return &Product{ID: g.nextID("prod"), Name: name}, nil
}

func (g *fakeGateway) CreatePrice(ctx context.Context, subAccount, productID, currency string, amountCents int64, interval string) (*Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	price := Price{
		ID:         g.nextID("price"),
		UnitAmount: amountCents,
		Currency:   currency,
		Recurring:  &Recurring{Interval: interval},
	}
	g.createdPrices = append(g.createdPrices, price)
	return &price, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, subAccount string, params CheckoutSessionParams) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.lastCheckoutSubAccount = subAccount
	g.lastCheckoutParams = params
	sess := &CheckoutSession{
		ID:       g.nextID("cs"),
		URL:      "https://checkout.example/" + params.PriceID,
		Status:   "open",
		Customer: params.Customer,
		Metadata: params.Metadata,
	}
	g.sessions[sess.ID] = sess
	return sess, nil
}

func (g *fakeGateway) GetCheckoutSession(ctx context.Context, subAccount, sessionID string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: checkout session %s", ErrNotFound, sessionID)
	}
	return sess, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getSubscriptionCalls++
	if g.err != nil {
		return nil, g.err
	}
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", ErrNotFound, subscriptionID)
	}
	out := *sub
	return &out, nil
}

func (g *fakeGateway) ListSubscriptionsByCustomer(ctx context.Context, subAccount, customerID string) ([]ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	var out []ProviderSubscription
	for _, sub := range g.subs {
		if sub.Customer == customerID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (g *fakeGateway) ListSubscriptions(ctx context.Context, subAccount string) ([]ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	var out []ProviderSubscription
	for _, sub := range g.subs {
		out = append(out, *sub)
	}
	return out, nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(ctx context.Context, subAccount, subscriptionID string, cancel bool) (*ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", ErrNotFound, subscriptionID)
	}
	sub.CancelAtPeriodEnd = cancel
	g.cancelAtPeriodEnd = append(g.cancelAtPeriodEnd, subscriptionID)
	out := *sub
	return &out, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sub, ok := g.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", ErrNotFound, subscriptionID)
	}
	sub.Status = "canceled"
	sub.CanceledAt = time.Now().Unix()
	g.canceledIDs = append(g.canceledIDs, subscriptionID)
	out := *sub
	return &out, nil
}

func (g *fakeGateway) ListPayouts(ctx context.Context, subAccount string, limit int) ([]Payout, error) {
	if g.err != nil {
		return nil, g.err
	}
	return nil, nil
}

func (g *fakeGateway) GetBalance(ctx context.Context, subAccount string) (*Balance, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &Balance{}, nil
}

var _ Gateway = (*fakeGateway)(nil)

func testConfig() Config {
	return Config{
		SecretKey:             "sk_test_key",
		WebhookSecret:         "whsec_test",
		PublicBaseURL:         "http://localhost:4000",
		SeatPriceID:           "price_seat",
		SeatTrialDays:         7,
		ApplicationFeePercent: 10,
		MinInvoiceAmountCents: 500,
		Currency:              "brl",
		AccountCountry:        "BR",
		InviteExpiry:          72 * time.Hour,
	}
}
