package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
)

func sampleCatalogue() *LocaleCatalogue {
	c := &LocaleCatalogue{
		Credentials: map[string]Credential{
			"na": {Username: "na-user", Password: "na-pass", BaseURL: "https://api-na.playground.klarna.com/"},
			"eu": {Username: "eu-user", Password: "eu-pass", BaseURL: "https://api.playground.klarna.com"},
		},
		Countries: map[string]LocaleSettings{
			"us": {Locale: "en-US", Currency: "USD", CredentialID: "na", TaxationPolicy: domain.TaxationNet},
			"SE": {Locale: "sv-SE", Currency: "SEK", CredentialID: "eu", PricingMode: domain.PricingProrated},
		},
	}
	c.Normalize()
	return c
}

func TestLocaleCatalogue_NormalizeAndResolve(t *testing.T) {
	c := sampleCatalogue()
	require.NoError(t, c.Validate())

	us, err := c.Resolve("us")
	require.NoError(t, err)
	assert.Equal(t, "US", us.Country)
	assert.Equal(t, domain.TaxationNet, us.TaxationPolicy)
	assert.Equal(t, domain.PricingFull, us.PricingMode)

	se, err := c.Resolve("SE")
	require.NoError(t, err)
	assert.Equal(t, domain.TaxationGross, se.TaxationPolicy)
	assert.Equal(t, domain.PricingProrated, se.PricingMode)

	_, err = c.Resolve("DE")
	assert.ErrorIs(t, err, ErrUnknownCountry)

	na, err := c.Credential("na")
	require.NoError(t, err)
	assert.Equal(t, "https://api-na.playground.klarna.com", na.BaseURL)

	_, err = c.Credential("apac")
	assert.Error(t, err)
}

func TestLocaleCatalogue_Validate(t *testing.T) {
	c := sampleCatalogue()
	c.Countries["DE"] = LocaleSettings{Country: "DE", Locale: "", Currency: "EURO", CredentialID: "x", TaxationPolicy: "both", PricingMode: domain.PricingFull}
	c.Credentials["bad"] = Credential{BaseURL: "not a url"}

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"locale is required", "3-letter", "unknown credential", "invalid taxation_policy", "username is required", "invalid base_url"} {
		assert.Contains(t, err.Error(), want)
	}

	assert.Error(t, (&LocaleCatalogue{}).Validate())
}

func TestLocaleCatalogue_ApplyPasswordOverrides(t *testing.T) {
	c := sampleCatalogue()
	env := map[string]string{"KLARNA_CREDENTIAL_NA_PASSWORD": "from-env"}

	c.ApplyPasswordOverrides(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "from-env", c.Credentials["na"].Password)
	assert.Equal(t, "eu-pass", c.Credentials["eu"].Password)
}
