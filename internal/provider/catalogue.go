package provider

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
)

// ErrUnknownCountry is returned when no locale settings exist for a country.
var ErrUnknownCountry = errors.New("no locale settings for country")

// Credential is a set of API credentials bound to one regional base URL.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`
}

// LocaleSettings are the per-country settings used to talk to the provider.
type LocaleSettings struct {
	Country        string                `yaml:"-"`
	Locale         string                `yaml:"locale"`
	Currency       string                `yaml:"currency"`
	CredentialID   string                `yaml:"credential_id"`
	TaxationPolicy domain.TaxationPolicy `yaml:"taxation_policy"`
	PricingMode    domain.PricingMode    `yaml:"pricing_mode"`
	SignInClientID string                `yaml:"signin_client_id"`
}

// LocaleCatalogue maps countries to locale settings and credential ids to
// credentials. It is loaded once at startup and read-only afterwards.
type LocaleCatalogue struct {
	Credentials map[string]Credential     `yaml:"credentials"`
	Countries   map[string]LocaleSettings `yaml:"countries"`
}

// Normalize upper-cases country keys, fills defaults and copies the country
// code into each entry.
func (c *LocaleCatalogue) Normalize() {
	countries := make(map[string]LocaleSettings, len(c.Countries))
	for code, s := range c.Countries {
		code = strings.ToUpper(code)
		s.Country = code
		if s.TaxationPolicy == "" {
			s.TaxationPolicy = domain.TaxationGross
		}
		if s.PricingMode == "" {
			s.PricingMode = domain.PricingFull
		}
		countries[code] = s
	}
	c.Countries = countries

	for id, cred := range c.Credentials {
		cred.BaseURL = strings.TrimRight(cred.BaseURL, "/")
		c.Credentials[id] = cred
	}
}

// ApplyPasswordOverrides replaces credential passwords with values from
// KLARNA_CREDENTIAL_<ID>_PASSWORD when lookup finds one.
func (c *LocaleCatalogue) ApplyPasswordOverrides(lookup func(string) (string, bool)) {
	for id, cred := range c.Credentials {
		key := "KLARNA_CREDENTIAL_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id)) + "_PASSWORD"
		if pw, ok := lookup(key); ok && pw != "" {
			cred.Password = pw
			c.Credentials[id] = cred
		}
	}
}

// Validate checks that every country references a known credential and
// carries usable settings.
func (c *LocaleCatalogue) Validate() error {
	if len(c.Countries) == 0 {
		return errors.New("locale catalogue has no countries")
	}

	var errs []error
	for _, code := range c.countryCodes() {
		s := c.Countries[code]
		if len(code) != 2 {
			errs = append(errs, fmt.Errorf("country %q: code must have two letters", code))
		}
		if s.Locale == "" {
			errs = append(errs, fmt.Errorf("country %s: locale is required", code))
		}
		if len(s.Currency) != 3 {
			errs = append(errs, fmt.Errorf("country %s: currency must be a 3-letter code", code))
		}
		if _, ok := c.Credentials[s.CredentialID]; !ok {
			errs = append(errs, fmt.Errorf("country %s: unknown credential %q", code, s.CredentialID))
		}
		if s.TaxationPolicy != domain.TaxationGross && s.TaxationPolicy != domain.TaxationNet {
			errs = append(errs, fmt.Errorf("country %s: invalid taxation_policy %q", code, s.TaxationPolicy))
		}
		if s.PricingMode != domain.PricingFull && s.PricingMode != domain.PricingProrated {
			errs = append(errs, fmt.Errorf("country %s: invalid pricing_mode %q", code, s.PricingMode))
		}
	}
	for id, cred := range c.Credentials {
		if cred.Username == "" {
			errs = append(errs, fmt.Errorf("credential %s: username is required", id))
		}
		if _, err := url.ParseRequestURI(cred.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("credential %s: invalid base_url %q: %w", id, cred.BaseURL, err))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the settings of a country (case-insensitive).
func (c *LocaleCatalogue) Resolve(country string) (LocaleSettings, error) {
	s, ok := c.Countries[strings.ToUpper(country)]
	if !ok {
		return LocaleSettings{}, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
	return s, nil
}

// Credential returns the credential with the given id.
func (c *LocaleCatalogue) Credential(id string) (Credential, error) {
	cred, ok := c.Credentials[id]
	if !ok {
		return Credential{}, fmt.Errorf("unknown credential %q", id)
	}
	return cred, nil
}

func (c *LocaleCatalogue) countryCodes() []string {
	codes := make([]string, 0, len(c.Countries))
	for code := range c.Countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
