package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "*"},
		{"ab", "**"},
		{"abc", "a*c"},
		{"Jonathan", "J******n"},
		{"Åsa", "Å*a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskValue(tt.in), tt.in)
	}
}

func TestMaskPayload(t *testing.T) {
	in := `{
		"purchase_country": "SE",
		"given_name": "Top",
		"email": "top@example.com",
		"billing_address": {"given_name": "Anna", "family_name": "Svensson", "email": "anna@example.com", "city": "Stockholm"},
		"shipping_address": {"given_name": "Bo", "family_name": "Li", "street_address": "Main 1"},
		"order_lines": [{"name": "Shirt", "merchant_data": "{\"given_name\":\"x\"}"}]
	}`

	out := MaskPayload([]byte(in))

	assert.JSONEq(t, `{
		"purchase_country": "SE",
		"given_name": "Top",
		"email": "t*************m",
		"billing_address": {"given_name": "A**a", "family_name": "S******n", "email": "a**************m", "city": "Stockholm"},
		"shipping_address": {"given_name": "**", "family_name": "**", "street_address": "Main 1"},
		"order_lines": [{"name": "Shirt", "merchant_data": "{\"given_name\":\"x\"}"}]
	}`, string(out))
}

func TestMaskPayload_NonJSONUnchanged(t *testing.T) {
	assert.Equal(t, []byte("not json"), MaskPayload([]byte("not json")))
	assert.Empty(t, MaskPayload(nil))
}

func TestMaskValueOf(t *testing.T) {
	out := MaskValueOf(SessionRequest{
		PurchaseCountry: "US",
		BillingAddress:  &Address{GivenName: "Jane", Email: "jane@example.com"},
	})
	assert.Contains(t, string(out), `"given_name":"J**e"`)
	assert.NotContains(t, string(out), "jane@example.com")
	assert.Nil(t, MaskValueOf(nil))
}
