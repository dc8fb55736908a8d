// Package builder maps cart and order snapshots into provider request bodies.
// Builders are pure: they validate their input and never touch the network.
package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/validator"
)

const (
	// OrderNoPlaceholder is replaced by the local order number in merchant URLs.
	OrderNoPlaceholder = "{orderNo}"

	intendedUseSubscription = "SUBSCRIPTION"
	tokenStatusCancelled    = "CANCELLED"
	customerTypePerson      = "person"
)

// Config holds the site settings shared by all builders.
type Config struct {
	MerchantURLs provider.MerchantURLs
	// MirrorLines records a JSON snapshot of every built line for audit.
	MirrorLines bool
}

// Builder produces provider request bodies.
type Builder struct {
	cfg Config
}

// New creates a Builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// LineSnapshot is the audit copy of one order line.
type LineSnapshot struct {
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	Line      json.RawMessage `json:"line"`
}

// Result is a built session or order body with its optional line snapshots.
type Result struct {
	Request       *provider.SessionRequest
	LineSnapshots []LineSnapshot
}

// Session builds the body of session.create and session.update.
func (b *Builder) Session(cart *domain.CartSnapshot, settings *provider.LocaleSettings) (*Result, error) {
	if err := validateInput(cart, settings); err != nil {
		return nil, err
	}
	res, err := b.purchase(cart, settings)
	if err != nil {
		return nil, err
	}
	res.Request.Intent = provider.IntentBuy
	if cart.Subscription != nil {
		res.Request.Intent = provider.IntentBuyAndTokenize
	}
	return res, nil
}

// Order builds the body of order.create for a local order number.
func (b *Builder) Order(orderNo string, cart *domain.CartSnapshot, settings *provider.LocaleSettings) (*Result, error) {
	if strings.TrimSpace(orderNo) == "" {
		return nil, provider.NewValidationError("", errors.New("order number is required"))
	}
	if err := validateInput(cart, settings); err != nil {
		return nil, err
	}
	res, err := b.purchase(cart, settings)
	if err != nil {
		return nil, err
	}
	res.Request.MerchantReference1 = orderNo
	res.Request.MerchantReference2 = cart.ID
	res.Request.MerchantURLs = b.merchantURLs(orderNo)
	return res, nil
}

// RecurringOrder builds the body of customertoken.order. Recurring orders
// are captured by the provider on creation.
func (b *Builder) RecurringOrder(orderNo string, cart *domain.CartSnapshot, settings *provider.LocaleSettings) (*Result, error) {
	res, err := b.Order(orderNo, cart, settings)
	if err != nil {
		return nil, err
	}
	res.Request.AutoCapture = true
	return res, nil
}

// Capture builds the body of capture.create.
func (b *Builder) Capture(order *domain.Order, amount int64) (*provider.CaptureRequest, error) {
	if order == nil || order.ProviderOrderID == "" {
		return nil, provider.NewValidationError(provider.EndpointCaptureCreate, errors.New("order has no provider order id"))
	}
	if amount <= 0 {
		return nil, provider.NewValidationError(provider.EndpointCaptureCreate, fmt.Errorf("capture amount must be positive, got %d", amount))
	}
	if amount > order.RemainingAmount() {
		return nil, provider.NewValidationError(provider.EndpointCaptureCreate,
			fmt.Errorf("capture amount %d exceeds remaining %d", amount, order.RemainingAmount()))
	}
	return &provider.CaptureRequest{
		CapturedAmount: amount,
		Description:    "Capture for order " + order.OrderNo,
		Reference:      order.OrderNo,
	}, nil
}

// CustomerToken builds the body of customertoken.create.
func (b *Builder) CustomerToken(cart *domain.CartSnapshot, settings *provider.LocaleSettings, description string) (*provider.CustomerTokenRequest, error) {
	if err := validateInput(cart, settings); err != nil {
		return nil, err
	}
	if description == "" {
		description = "Subscription " + cart.ID
	}
	return &provider.CustomerTokenRequest{
		PurchaseCountry:  cart.Country,
		PurchaseCurrency: cart.Currency,
		Locale:           WireLocale(cart.Locale, settings.Locale),
		BillingAddress:   toAddress(cart.BillingAddress),
		Customer:         toCustomer(cart.Customer),
		Description:      description,
		IntendedUse:      intendedUseSubscription,
	}, nil
}

// CustomerTokenCancel builds the body of customertoken.cancel.
func (b *Builder) CustomerTokenCancel() *provider.CustomerTokenStatusRequest {
	return &provider.CustomerTokenStatusRequest{Status: tokenStatusCancelled}
}

// Settlement builds the body of vcn.settlement.
func (b *Builder) Settlement(order *domain.Order, keyID string) (*provider.SettlementRequest, error) {
	if order == nil || order.ProviderOrderID == "" {
		return nil, provider.NewValidationError(provider.EndpointVCNSettlement, errors.New("order has no provider order id"))
	}
	if keyID == "" {
		return nil, provider.NewValidationError(provider.EndpointVCNSettlement, errors.New("settlement key id is required"))
	}
	return &provider.SettlementRequest{OrderID: order.ProviderOrderID, KeyID: keyID}, nil
}

func (b *Builder) purchase(cart *domain.CartSnapshot, settings *provider.LocaleSettings) (*Result, error) {
	opts := Options{Taxation: settings.TaxationPolicy, Pricing: settings.PricingMode}
	lines, amount, tax := OrderLines(Lines(cart, opts), opts)

	req := &provider.SessionRequest{
		PurchaseCountry:  cart.Country,
		PurchaseCurrency: cart.Currency,
		Locale:           WireLocale(cart.Locale, settings.Locale),
		OrderAmount:      amount,
		OrderTaxAmount:   tax,
		OrderLines:       lines,
		BillingAddress:   toAddress(cart.BillingAddress),
		ShippingAddress:  toAddress(cart.ShippingAddress()),
		Customer:         toCustomer(cart.Customer),
	}

	res := &Result{Request: req}
	if b.cfg.MirrorLines {
		snaps, err := snapshot(lines)
		if err != nil {
			return nil, provider.NewValidationError("", err)
		}
		res.LineSnapshots = snaps
	}
	return res, nil
}

func (b *Builder) merchantURLs(orderNo string) *provider.MerchantURLs {
	u := b.cfg.MerchantURLs
	if u == (provider.MerchantURLs{}) {
		return nil
	}
	r := strings.NewReplacer(OrderNoPlaceholder, orderNo)
	return &provider.MerchantURLs{
		Confirmation:  r.Replace(u.Confirmation),
		Notification:  r.Replace(u.Notification),
		Push:          r.Replace(u.Push),
		Authorization: r.Replace(u.Authorization),
	}
}

func validateInput(cart *domain.CartSnapshot, settings *provider.LocaleSettings) error {
	if cart == nil {
		return provider.NewValidationError("", errors.New("cart is required"))
	}
	if settings == nil {
		return provider.NewValidationError("", errors.New("locale settings are required"))
	}
	if err := validator.Validate(cart); err != nil {
		return provider.NewValidationError("", fmt.Errorf("invalid cart: %w", err))
	}
	return nil
}

// WireLocale returns the provider spelling of a locale ("en_US" becomes
// "en-US"), falling back to the country default.
func WireLocale(locale, fallback string) string {
	if locale = strings.TrimSpace(locale); locale == "" {
		locale = fallback
	}
	return strings.ReplaceAll(locale, "_", "-")
}

func toAddress(a *domain.Address) *provider.Address {
	if a == nil {
		return nil
	}
	return &provider.Address{
		GivenName:      a.GivenName,
		FamilyName:     a.FamilyName,
		Email:          a.Email,
		Phone:          a.Phone,
		StreetAddress:  a.StreetAddress,
		StreetAddress2: a.StreetAddress2,
		PostalCode:     a.PostalCode,
		City:           a.City,
		Region:         a.Region,
		Country:        a.Country,
	}
}

func toCustomer(c domain.Customer) *provider.Customer {
	return &provider.Customer{Type: customerTypePerson, DateOfBirth: c.DateOfBirth}
}

func snapshot(lines []provider.OrderLine) ([]LineSnapshot, error) {
	out := make([]LineSnapshot, 0, len(lines))
	for _, l := range lines {
		raw, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("snapshot line %s: %w", l.Reference, err)
		}
		out = append(out, LineSnapshot{Type: l.Type, Reference: l.Reference, Line: raw})
	}
	return out, nil
}
