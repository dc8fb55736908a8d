package builder

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/money"
)

const (
	// MaxCategoryPath is one below the provider's limit of 750.
	MaxCategoryPath = 749
	// MaxMerchantData includes the ellipsis marker.
	MaxMerchantData = 255

	ellipsis = "..."
)

// Options are the site switches shared by every line of one request.
type Options struct {
	Taxation domain.TaxationPolicy
	Pricing  domain.PricingMode
}

func (o Options) net() bool      { return o.Taxation == domain.TaxationNet }
func (o Options) prorated() bool { return o.Pricing == domain.PricingProrated }

// Line is one order line variant. The set is closed: PhysicalLine,
// SurchargeLine, DiscountLine, ShippingLine, GiftCardLine and SalesTaxLine.
type Line interface {
	Build(opts Options) provider.OrderLine
	lineType() string
}

// PhysicalLine is a product line.
type PhysicalLine struct {
	Item domain.LineItem
}

func (PhysicalLine) lineType() string { return provider.LineTypePhysical }

func (l PhysicalLine) Build(opts Options) provider.OrderLine {
	price, tax := l.Item.Price, l.Item.Tax
	if opts.prorated() {
		price, tax = l.Item.ProratedPrice, l.Item.ProratedTax
	}
	total := money.ToMinor(price)

	line := provider.OrderLine{
		Type:        provider.LineTypePhysical,
		Reference:   l.Item.ProductID,
		Name:        l.Item.Name,
		Quantity:    l.Item.Quantity,
		UnitPrice:   money.UnitPrice(total, l.Item.Quantity),
		TotalAmount: total,
		ProductURL:  l.Item.ProductURL,
		ImageURL:    l.Item.ImageURL,
	}
	applyTax(&line, opts, l.Item.TaxRate, tax)

	if l.Item.CategoryPath != "" || l.Item.Brand != "" || l.Item.GTIN != "" {
		line.ProductIdentifiers = &provider.ProductIdentifiers{
			CategoryPath:          TruncateCategoryPath(l.Item.CategoryPath),
			Brand:                 l.Item.Brand,
			GlobalTradeItemNumber: l.Item.GTIN,
		}
	}
	return line
}

// SurchargeLine is a product shipping surcharge.
type SurchargeLine struct {
	Surcharge domain.Surcharge
}

func (SurchargeLine) lineType() string { return provider.LineTypeSurcharge }

func (l SurchargeLine) Build(opts Options) provider.OrderLine {
	total := money.ToMinor(l.Surcharge.Amount)
	line := provider.OrderLine{
		Type:        provider.LineTypeSurcharge,
		Reference:   l.Surcharge.ID,
		Name:        l.Surcharge.Name,
		Quantity:    1,
		UnitPrice:   total,
		TotalAmount: total,
	}
	applyTax(&line, opts, l.Surcharge.TaxRate, l.Surcharge.Tax)
	return line
}

// DiscountLine is a price adjustment sent as its own line in full pricing.
type DiscountLine struct {
	Adjustment domain.PriceAdjustment
}

func (DiscountLine) lineType() string { return provider.LineTypeDiscount }

func (l DiscountLine) Build(opts Options) provider.OrderLine {
	adj := l.Adjustment
	total := money.ToMinor(adj.Amount)
	ref := adj.PromotionID
	if ref == "" {
		ref = adj.ID
	}
	name := adj.Description
	if name == "" {
		name = ref
	}
	line := provider.OrderLine{
		Type:        provider.LineTypeDiscount,
		Reference:   ref,
		Name:        name,
		Quantity:    1,
		UnitPrice:   total,
		TotalAmount: total,
	}
	applyTax(&line, opts, adj.TaxRate, adj.Tax)
	return line
}

// ShippingLine is the shipping fee of one shipment.
type ShippingLine struct {
	Shipment domain.Shipment
}

func (ShippingLine) lineType() string { return provider.LineTypeShippingFee }

func (l ShippingLine) Build(opts Options) provider.OrderLine {
	s := l.Shipment
	price, tax := s.Price, s.Tax
	if opts.prorated() {
		price, tax = s.ProratedPrice, s.ProratedTax
	}
	total := money.ToMinor(price)
	name := s.MethodName
	if name == "" {
		name = s.MethodID
	}
	line := provider.OrderLine{
		Type:         provider.LineTypeShippingFee,
		Reference:    s.MethodID,
		Name:         name,
		Quantity:     1,
		UnitPrice:    total,
		TotalAmount:  total,
		MerchantData: shipmentMerchantData(s),
	}
	applyTax(&line, opts, s.TaxRate, tax)
	return line
}

// GiftCardLine is the part of the order paid with a gift certificate.
type GiftCardLine struct {
	Payment domain.GiftCertificatePayment
}

func (GiftCardLine) lineType() string { return provider.LineTypeGiftCard }

func (l GiftCardLine) Build(Options) provider.OrderLine {
	total := -money.ToMinor(l.Payment.Amount.Abs())
	return provider.OrderLine{
		Type:        provider.LineTypeGiftCard,
		Reference:   l.Payment.Code,
		Name:        "Gift Certificate",
		Quantity:    1,
		UnitPrice:   total,
		TotalAmount: total,
	}
}

// SalesTaxLine carries the whole order tax under net taxation.
type SalesTaxLine struct {
	Amount decimal.Decimal
}

func (SalesTaxLine) lineType() string { return provider.LineTypeSalesTax }

func (l SalesTaxLine) Build(Options) provider.OrderLine {
	total := money.ToMinor(l.Amount)
	return provider.OrderLine{
		Type:        provider.LineTypeSalesTax,
		Reference:   "Sales Tax",
		Name:        "Sales Tax",
		Quantity:    1,
		UnitPrice:   total,
		TotalAmount: total,
	}
}

// applyTax sets the tax fields; net taxation always sends zero.
func applyTax(line *provider.OrderLine, opts Options, rate, tax decimal.Decimal) {
	if opts.net() {
		line.TaxRate = 0
		line.TotalTaxAmount = 0
		return
	}
	line.TaxRate = money.TaxRateBasisPoints(rate)
	line.TotalTaxAmount = money.ToMinor(tax)
}

// Lines expands a cart into its order line variants. In prorated pricing
// promotions are already spread over item and shipment prices, so no
// discount lines are emitted.
func Lines(cart *domain.CartSnapshot, opts Options) []Line {
	var lines []Line
	for _, item := range cart.Items {
		lines = append(lines, PhysicalLine{Item: item})
		if !opts.prorated() {
			for _, adj := range item.Adjustments {
				lines = append(lines, DiscountLine{Adjustment: adj})
			}
		}
	}
	for _, s := range cart.Surcharges {
		lines = append(lines, SurchargeLine{Surcharge: s})
	}
	for _, s := range cart.Shipments {
		lines = append(lines, ShippingLine{Shipment: s})
		if !opts.prorated() {
			for _, adj := range s.Adjustments {
				lines = append(lines, DiscountLine{Adjustment: adj})
			}
		}
	}
	if !opts.prorated() {
		for _, adj := range cart.OrderAdjustments {
			lines = append(lines, DiscountLine{Adjustment: adj})
		}
	}
	for _, gc := range cart.GiftCertificates {
		lines = append(lines, GiftCardLine{Payment: gc})
	}
	if opts.net() {
		lines = append(lines, SalesTaxLine{Amount: cart.TotalTax})
	}
	return lines
}

// OrderLines builds every line and returns them with the order totals.
func OrderLines(lines []Line, opts Options) (out []provider.OrderLine, amount, tax int64) {
	out = make([]provider.OrderLine, 0, len(lines))
	for _, l := range lines {
		ol := l.Build(opts)
		amount += ol.TotalAmount
		tax += ol.TotalTaxAmount
		out = append(out, ol)
	}
	return out, amount, tax
}

// TruncateCategoryPath cuts a category path to MaxCategoryPath characters.
func TruncateCategoryPath(path string) string {
	r := []rune(path)
	if len(r) <= MaxCategoryPath {
		return path
	}
	return string(r[:MaxCategoryPath])
}

// TruncateMerchantData cuts s to MaxMerchantData characters, ending with an
// ellipsis when it was cut.
func TruncateMerchantData(s string) string {
	r := []rune(s)
	if len(r) <= MaxMerchantData {
		return s
	}
	return string(r[:MaxMerchantData-len(ellipsis)]) + ellipsis
}

type shipmentData struct {
	ShipmentID string          `json:"shipment_id"`
	MethodID   string          `json:"method_id"`
	Address    *domain.Address `json:"address,omitempty"`
}

func shipmentMerchantData(s domain.Shipment) string {
	b, err := json.Marshal(shipmentData{ShipmentID: s.ID, MethodID: s.MethodID, Address: s.Address})
	if err != nil {
		return ""
	}
	return TruncateMerchantData(string(b))
}
