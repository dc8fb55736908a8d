package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC, serialised as YYYY-MM-DD.
type Date struct {
	t time.Time
}

// NewDate returns the calendar day of t in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate that panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.t }

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) After(o Date) bool { return d.t.After(o.t) }

// AddDays returns the day n days later.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddPeriod advances the day by frequency times period.
func (d Date) AddPeriod(period Period, frequency int) Date {
	switch period {
	case PeriodDay:
		return Date{t: d.t.AddDate(0, 0, frequency)}
	case PeriodWeek:
		return Date{t: d.t.AddDate(0, 0, 7*frequency)}
	case PeriodMonth:
		return Date{t: d.t.AddDate(0, frequency, 0)}
	case PeriodYear:
		return Date{t: d.t.AddDate(frequency, 0, 0)}
	}
	return d
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Period is the unit of a subscription interval.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// RetryPolicy bounds how failed recurring charges are retried.
type RetryPolicy struct {
	Enabled       bool
	MaxRetries    int
	FrequencyDays int
}

// RetryOutcome is the result of handling a failed charge.
type RetryOutcome int

const (
	RetryScheduled RetryOutcome = iota + 1
	RetryExhausted
)

func (o RetryOutcome) String() string {
	switch o {
	case RetryScheduled:
		return "retry_scheduled"
	case RetryExhausted:
		return "retry_exhausted"
	}
	return "unknown"
}

// Subscription is a recurring payment agreement of a customer.
type Subscription struct {
	SubscriptionID        string `json:"subscription_id"`
	CustomerToken         string `json:"customer_token"`
	Country               string `json:"country,omitempty"`
	NextChargeDate        Date   `json:"next_charge_date"`
	NextRetryDate         *Date  `json:"next_retry_date,omitempty"`
	RetryCount            int    `json:"retry_count"`
	Enabled               bool   `json:"enabled"`
	IsTrial               bool   `json:"is_trial"`
	SubscriptionPeriod    Period `json:"subscription_period"`
	SubscriptionFrequency int    `json:"subscription_frequency"`
	LastOrderID           string `json:"last_order_id"`
}

// ShouldCharge reports whether the subscription is due today, either on its
// charge date or on a scheduled retry.
func (s *Subscription) ShouldCharge(today Date, retryEnabled bool) bool {
	if !s.Enabled {
		return false
	}
	if s.NextChargeDate.Equal(today) {
		return true
	}
	return retryEnabled && s.NextRetryDate != nil && s.NextRetryDate.Equal(today)
}

// Advance moves the subscription past a successful charge made today. The
// next charge date is computed from the scheduled date; if a late retry
// leaves it in the past it is computed from today instead.
func (s *Subscription) Advance(today Date, lastOrderID string) {
	next := s.NextChargeDate.AddPeriod(s.SubscriptionPeriod, s.SubscriptionFrequency)
	if !next.After(today) {
		next = today.AddPeriod(s.SubscriptionPeriod, s.SubscriptionFrequency)
	}
	s.NextChargeDate = next
	s.NextRetryDate = nil
	s.RetryCount = 0
	s.IsTrial = false
	if lastOrderID != "" {
		s.LastOrderID = lastOrderID
	}
}

// HandleFailure applies the retry policy after a failed charge. When
// retries are exhausted the subscription is disabled; the caller must
// cancel it at the provider. RetryCount never exceeds policy.MaxRetries.
func (s *Subscription) HandleFailure(today Date, policy RetryPolicy) RetryOutcome {
	persisted := s.RetryCount
	next := persisted + 1
	if policy.Enabled && persisted < policy.MaxRetries && next <= policy.MaxRetries {
		retry := today.AddDays(policy.FrequencyDays)
		s.NextRetryDate = &retry
		s.RetryCount = next
		return RetryScheduled
	}

	s.Enabled = false
	s.NextRetryDate = nil
	if policy.Enabled {
		s.RetryCount = min(next, policy.MaxRetries)
	}
	return RetryExhausted
}

// CustomerProfile owns the subscription list of one customer, persisted as
// a single document.
type CustomerProfile struct {
	CustomerID    string         `json:"customer_id"`
	Email         string         `json:"email,omitempty"`
	Subscriptions []Subscription `json:"subscriptions"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// LoadErr is set when the stored subscription list could not be
	// decoded. Such a profile must be neither charged nor saved.
	LoadErr error `json:"-"`
}
