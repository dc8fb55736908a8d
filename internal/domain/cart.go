package domain

import (
	"github.com/shopspring/decimal"
)

// TaxationPolicy tells whether prices in a cart already include tax.
type TaxationPolicy string

const (
	TaxationGross TaxationPolicy = "gross"
	TaxationNet   TaxationPolicy = "net"
)

// PricingMode selects between prorated and full line pricing for one request.
type PricingMode string

const (
	PricingFull     PricingMode = "full"
	PricingProrated PricingMode = "prorated"
)

// CartSnapshot is a read-only view of a shopper's basket or placed order.
// Amounts are in major currency units.
type CartSnapshot struct {
	ID               string                   `json:"id" validate:"required"`
	Currency         string                   `json:"currency" validate:"required,iso4217"`
	Country          string                   `json:"country" validate:"required,iso3166_1_alpha2"`
	Locale           string                   `json:"locale" validate:"omitempty,locale"`
	Items            []LineItem               `json:"items" validate:"required,min=1,dive"`
	Surcharges       []Surcharge              `json:"surcharges,omitempty" validate:"dive"`
	Shipments        []Shipment               `json:"shipments,omitempty" validate:"dive"`
	OrderAdjustments []PriceAdjustment        `json:"order_adjustments,omitempty" validate:"dive"`
	GiftCertificates []GiftCertificatePayment `json:"gift_certificates,omitempty" validate:"dive"`
	BillingAddress   *Address                 `json:"billing_address,omitempty"`
	Customer         Customer                 `json:"customer"`
	TotalTax         decimal.Decimal          `json:"total_tax"`
	Subscription     *SubscriptionTerms       `json:"subscription,omitempty"`
}

// SubscriptionTerms mark a cart that starts a recurring agreement.
type SubscriptionTerms struct {
	Period    Period `json:"period" validate:"required,oneof=day week month year"`
	Frequency int    `json:"frequency" validate:"gt=0"`
	Trial     bool   `json:"trial"`
}

// ShippingAddress returns the address of the first shipment that has one.
func (c *CartSnapshot) ShippingAddress() *Address {
	for i := range c.Shipments {
		if c.Shipments[i].Address != nil {
			return c.Shipments[i].Address
		}
	}
	return nil
}

// LineItem is a product line. Price and Tax are line totals at full price;
// the Prorated variants have order-level promotions spread across lines.
type LineItem struct {
	ID            string            `json:"id" validate:"required"`
	ProductID     string            `json:"product_id" validate:"required"`
	Name          string            `json:"name" validate:"required"`
	Quantity      int               `json:"quantity" validate:"gt=0"`
	Price         decimal.Decimal   `json:"price"`
	ProratedPrice decimal.Decimal   `json:"prorated_price"`
	Tax           decimal.Decimal   `json:"tax"`
	ProratedTax   decimal.Decimal   `json:"prorated_tax"`
	TaxRate       decimal.Decimal   `json:"tax_rate"`
	CategoryPath  string            `json:"category_path,omitempty"`
	Brand         string            `json:"brand,omitempty"`
	GTIN          string            `json:"gtin,omitempty"`
	ProductURL    string            `json:"product_url,omitempty"`
	ImageURL      string            `json:"image_url,omitempty"`
	Adjustments   []PriceAdjustment `json:"adjustments,omitempty" validate:"dive"`
}

// Surcharge is a product-level shipping surcharge.
type Surcharge struct {
	ID      string          `json:"id" validate:"required"`
	Name    string          `json:"name" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Tax     decimal.Decimal `json:"tax"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

// Shipment carries the shipping method price and destination.
type Shipment struct {
	ID            string            `json:"id" validate:"required"`
	MethodID      string            `json:"method_id" validate:"required"`
	MethodName    string            `json:"method_name"`
	Price         decimal.Decimal   `json:"price"`
	ProratedPrice decimal.Decimal   `json:"prorated_price"`
	Tax           decimal.Decimal   `json:"tax"`
	ProratedTax   decimal.Decimal   `json:"prorated_tax"`
	TaxRate       decimal.Decimal   `json:"tax_rate"`
	Address       *Address          `json:"address,omitempty"`
	Adjustments   []PriceAdjustment `json:"adjustments,omitempty" validate:"dive"`
}

// PriceAdjustment is a promotion applied to an item, a shipment or the
// whole order. Amount is negative for discounts.
type PriceAdjustment struct {
	ID          string          `json:"id" validate:"required"`
	PromotionID string          `json:"promotion_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// GiftCertificatePayment is the part of the order paid by a gift certificate.
type GiftCertificatePayment struct {
	Code   string          `json:"code" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// Address is a postal address with the contact details of its recipient.
type Address struct {
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	StreetAddress  string `json:"street_address"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Region         string `json:"region,omitempty"`
	Country        string `json:"country"`
}

// Customer identifies the shopper.
type Customer struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	Registered  bool   `json:"registered"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}
