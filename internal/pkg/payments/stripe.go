package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// StripeClient is a thin typed wrapper around the Stripe HTTP API. Calls
// scoped to a coach's sub-merchant account pass that account's id, which is
// sent as the Stripe-Account header.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// Gateway is the provider surface the payment components depend on.
// *StripeClient implements it; tests substitute a scripted double.
type Gateway interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error)
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)
	CreateProduct(ctx context.Context, subAccount, name string, metadata map[string]string) (*Product, error)
	CreatePrice(ctx context.Context, subAccount, productID, currency string, amountCents int64, interval string) (*Price, error)
	CreateCheckoutSession(ctx context.Context, subAccount string, params CheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, subAccount, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, subAccount, customerID string) ([]ProviderSubscription, error)
	ListSubscriptions(ctx context.Context, subAccount string) ([]ProviderSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subAccount, subscriptionID string, cancel bool) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error)
	ListPayouts(ctx context.Context, subAccount string, limit int) ([]Payout, error)
	GetBalance(ctx context.Context, subAccount string) (*Balance, error)
}

var _ Gateway = (*StripeClient)(nil)

func NewStripeClient(cfg Config) *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(cfg.SecretKey),
		APIBaseURL: defaultStripeAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Account mirrors the provider account object; only the capability flags the
// ledger caches are mapped.
type Account struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

type CreateAccountParams struct {
	Country      string
	Email        string
	BusinessType string
}

type AccountLink struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Recurring struct {
	Interval string `json:"interval"`
}

type Price struct {
	ID         string     `json:"id"`
	UnitAmount int64      `json:"unit_amount"`
	Currency   string     `json:"currency"`
	Recurring  *Recurring `json:"recurring"`
}

type SubscriptionItem struct {
	Price Price `json:"price"`
}

// ProviderSubscription is the wire shape of a provider subscription. All
// timestamps are unix epochs; mapping to absolute instants happens in the
// sync engine, never past it.
type ProviderSubscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

type CheckoutSessionParams struct {
	Mode                  string
	Customer              string
	CustomerEmail         string
	PriceID               string
	TrialDays             int
	ApplicationFeePercent float64
	SuccessURL            string
	CancelURL             string
	Metadata              map[string]string
}

type CheckoutSession struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Status       string            `json:"status"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type Payout struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	ArrivalDate int64  `json:"arrival_date"`
}

type BalanceAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

type listEnvelope struct {
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"has_more"`
}

type providerErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", params.Country)
	form.Set("business_type", params.BusinessType)
	form.Set("capabilities[card_payments][requested]", "true")
	form.Set("capabilities[transfers][requested]", "true")
	if params.Email != "" {
		form.Set("email", params.Email)
	}

	var out Account
	if err := c.do(ctx, http.MethodPost, "/accounts", form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, &ValidationError{Field: "account_id", Message: "is required"}
	}
	var out Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var out AccountLink
	if err := c.do(ctx, http.MethodPost, "/account_links", form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("name", name)

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateProduct(ctx context.Context, subAccount, name string, metadata map[string]string) (*Product, error) {
	form := url.Values{}
	form.Set("name", name)
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var out Product
	if err := c.do(ctx, http.MethodPost, "/products", form, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreatePrice(ctx context.Context, subAccount, productID, currency string, amountCents int64, interval string) (*Price, error) {
	form := url.Values{}
	form.Set("product", productID)
	form.Set("currency", currency)
	form.Set("unit_amount", strconv.FormatInt(amountCents, 10))
	form.Set("recurring[interval]", interval)

	var out Price
	if err := c.do(ctx, http.MethodPost, "/prices", form, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, subAccount string, params CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	mode := params.Mode
	if mode == "" {
		mode = "subscription"
	}
	form.Set("mode", mode)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.Customer != "" {
		form.Set("customer", params.Customer)
	}
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}
	if params.TrialDays > 0 {
		form.Set("subscription_data[trial_period_days]", strconv.Itoa(params.TrialDays))
	}
	if params.ApplicationFeePercent > 0 {
		form.Set("subscription_data[application_fee_percent]", strconv.FormatFloat(params.ApplicationFeePercent, 'f', -1, 64))
	}
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
		form.Set(fmt.Sprintf("subscription_data[metadata][%s]", k), v)
	}

	var out CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, subAccount, sessionID string) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) GetSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error) {
	var out ProviderSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) ListSubscriptionsByCustomer(ctx context.Context, subAccount, customerID string) ([]ProviderSubscription, error) {
	q := url.Values{}
	q.Set("customer", customerID)
	q.Set("status", "all")
	q.Set("limit", "100")
	return c.listSubscriptions(ctx, subAccount, q)
}

func (c *StripeClient) ListSubscriptions(ctx context.Context, subAccount string) ([]ProviderSubscription, error) {
	q := url.Values{}
	q.Set("status", "all")
	q.Set("limit", "100")
	return c.listSubscriptions(ctx, subAccount, q)
}

func (c *StripeClient) listSubscriptions(ctx context.Context, subAccount string, q url.Values) ([]ProviderSubscription, error) {
	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/subscriptions?"+q.Encode(), nil, subAccount, &env); err != nil {
		return nil, err
	}
	var subs []ProviderSubscription
	if err := json.Unmarshal(env.Data, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *StripeClient) SetCancelAtPeriodEnd(ctx context.Context, subAccount, subscriptionID string, cancel bool) (*ProviderSubscription, error) {
	form := url.Values{}
	form.Set("cancel_at_period_end", strconv.FormatBool(cancel))

	var out ProviderSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID), form, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) CancelSubscription(ctx context.Context, subAccount, subscriptionID string) (*ProviderSubscription, error) {
	var out ProviderSubscription
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(subscriptionID), nil, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) ListPayouts(ctx context.Context, subAccount string, limit int) ([]Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/payouts?"+q.Encode(), nil, subAccount, &env); err != nil {
		return nil, err
	}
	var payouts []Payout
	if err := json.Unmarshal(env.Data, &payouts); err != nil {
		return nil, err
	}
	return payouts, nil
}

func (c *StripeClient) GetBalance(ctx context.Context, subAccount string) (*Balance, error) {
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/balance", nil, subAccount, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, subAccount string, out interface{}) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIBaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if subAccount != "" {
		req.Header.Set("Stripe-Account", subAccount)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status=%d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	default:
		var envlp providerErrorEnvelope
		_ = json.Unmarshal(raw, &envlp)
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Code:       envlp.Error.Code,
			Message:    envlp.Error.Message,
		}
	}
}

// epochToTime converts a provider unix timestamp to an absolute instant.
// Zero means the provider sent null.
func epochToTime(epoch int64) *time.Time {
	if epoch == 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}
