package provider

// Wire types of the provider's JSON API. Amounts are integers in minor units;
// tax rates are in basis points times 100 (25% is 2500).

// Line types.
const (
	LineTypePhysical    = "physical"
	LineTypeSurcharge   = "surcharge"
	LineTypeDiscount    = "discount"
	LineTypeShippingFee = "shipping_fee"
	LineTypeGiftCard    = "gift_card"
	LineTypeSalesTax    = "sales_tax"
)

// Session intents.
const (
	IntentBuy            = "buy"
	IntentTokenize       = "tokenize"
	IntentBuyAndTokenize = "buy_and_tokenize"
)

type ProductIdentifiers struct {
	CategoryPath           string `json:"category_path,omitempty"`
	Brand                  string `json:"brand,omitempty"`
	GlobalTradeItemNumber  string `json:"global_trade_item_number,omitempty"`
	ManufacturerPartNumber string `json:"manufacturer_part_number,omitempty"`
}

type OrderLine struct {
	Type                string              `json:"type"`
	Reference           string              `json:"reference"`
	Name                string              `json:"name"`
	Quantity            int                 `json:"quantity"`
	UnitPrice           int64               `json:"unit_price"`
	TaxRate             int64               `json:"tax_rate"`
	TotalAmount         int64               `json:"total_amount"`
	TotalDiscountAmount int64               `json:"total_discount_amount"`
	TotalTaxAmount      int64               `json:"total_tax_amount"`
	MerchantData        string              `json:"merchant_data,omitempty"`
	ProductURL          string              `json:"product_url,omitempty"`
	ImageURL            string              `json:"image_url,omitempty"`
	ProductIdentifiers  *ProductIdentifiers `json:"product_identifiers,omitempty"`
}

type Address struct {
	GivenName      string `json:"given_name,omitempty"`
	FamilyName     string `json:"family_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	StreetAddress  string `json:"street_address,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
	Region         string `json:"region,omitempty"`
	Country        string `json:"country,omitempty"`
}

type Customer struct {
	Type        string `json:"type,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

type MerchantURLs struct {
	Confirmation  string `json:"confirmation,omitempty"`
	Notification  string `json:"notification,omitempty"`
	Push          string `json:"push,omitempty"`
	Authorization string `json:"authorization,omitempty"`
}

// SessionRequest is the body of session.create, session.update and
// order.create.
type SessionRequest struct {
	PurchaseCountry    string        `json:"purchase_country"`
	PurchaseCurrency   string        `json:"purchase_currency"`
	Locale             string        `json:"locale"`
	OrderAmount        int64         `json:"order_amount"`
	OrderTaxAmount     int64         `json:"order_tax_amount"`
	OrderLines         []OrderLine   `json:"order_lines"`
	BillingAddress     *Address      `json:"billing_address,omitempty"`
	ShippingAddress    *Address      `json:"shipping_address,omitempty"`
	Customer           *Customer     `json:"customer,omitempty"`
	MerchantURLs       *MerchantURLs `json:"merchant_urls,omitempty"`
	MerchantReference1 string        `json:"merchant_reference1,omitempty"`
	MerchantReference2 string        `json:"merchant_reference2,omitempty"`
	Intent             string        `json:"intent,omitempty"`
	AutoCapture        bool          `json:"auto_capture,omitempty"`
}

type PaymentMethodCategory struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	AssetURLs  struct {
		Descriptive string `json:"descriptive"`
		Standard    string `json:"standard"`
	} `json:"asset_urls"`
}

type SessionResponse struct {
	SessionID               string                  `json:"session_id"`
	ClientToken             string                  `json:"client_token"`
	PaymentMethodCategories []PaymentMethodCategory `json:"payment_method_categories"`
}

type SessionReadResponse struct {
	SessionID               string                  `json:"session_id"`
	ClientToken             string                  `json:"client_token"`
	Status                  string                  `json:"status"`
	Locale                  string                  `json:"locale"`
	ExpiresAt               string                  `json:"expires_at"`
	PaymentMethodCategories []PaymentMethodCategory `json:"payment_method_categories"`
}

type OrderResponse struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	FraudStatus string `json:"fraud_status"`
}

type OrderReadResponse struct {
	OrderID                   string `json:"order_id"`
	Status                    string `json:"status"`
	FraudStatus               string `json:"fraud_status"`
	OrderAmount               int64  `json:"order_amount"`
	CapturedAmount            int64  `json:"captured_amount"`
	RemainingAuthorizedAmount int64  `json:"remaining_authorized_amount"`
}

type CaptureRequest struct {
	CapturedAmount int64       `json:"captured_amount"`
	Description    string      `json:"description,omitempty"`
	Reference      string      `json:"reference,omitempty"`
	OrderLines     []OrderLine `json:"order_lines,omitempty"`
}

type CustomerTokenRequest struct {
	PurchaseCountry  string    `json:"purchase_country"`
	PurchaseCurrency string    `json:"purchase_currency"`
	Locale           string    `json:"locale"`
	BillingAddress   *Address  `json:"billing_address,omitempty"`
	Customer         *Customer `json:"customer,omitempty"`
	Description      string    `json:"description"`
	IntendedUse      string    `json:"intended_use"`
}

type CustomerTokenResponse struct {
	TokenID     string `json:"token_id"`
	RedirectURL string `json:"redirect_url"`
}

type CustomerTokenStatusRequest struct {
	Status string `json:"status"`
}

type SettlementRequest struct {
	OrderID string `json:"order_id"`
	KeyID   string `json:"key_id"`
}

type SettlementCard struct {
	CardID    string `json:"card_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Brand     string `json:"brand"`
	Holder    string `json:"holder"`
	PCIData   string `json:"pci_data"`
	IV        string `json:"iv"`
	AESKey    string `json:"aes_key"`
}

type SettlementResponse struct {
	SettlementID string           `json:"settlement_id"`
	OrderID      string           `json:"order_id"`
	Cards        []SettlementCard `json:"cards"`
}

type WebhookRequest struct {
	URL          string   `json:"url"`
	EventTypes   []string `json:"event_types"`
	EventVersion string   `json:"event_version,omitempty"`
}

type WebhookResponse struct {
	WebhookID  string   `json:"webhook_id"`
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
}

type TokenRefreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}
