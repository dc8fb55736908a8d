package domain

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	d := MustParseDate("2026-02-28")
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-02-28"`, string(b))

	var got Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-02-28"`), &got))
	assert.True(t, d.Equal(got))

	require.NoError(t, json.Unmarshal([]byte(`null`), &got))
	assert.True(t, got.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"28/02/2026"`), &got))
}

func TestDate_AddPeriod(t *testing.T) {
	d := MustParseDate("2026-01-31")
	assert.Equal(t, "2026-02-03", d.AddPeriod(PeriodDay, 3).String())
	assert.Equal(t, "2026-02-14", d.AddPeriod(PeriodWeek, 2).String())
	assert.Equal(t, "2026-03-03", d.AddPeriod(PeriodMonth, 1).String())
	assert.Equal(t, "2027-01-31", d.AddPeriod(PeriodYear, 1).String())
	assert.Equal(t, d, d.AddPeriod(Period("fortnight"), 1))
}

func TestSubscription_ShouldCharge(t *testing.T) {
	today := MustParseDate("2026-05-10")
	retry := today

	tests := []struct {
		name         string
		sub          Subscription
		retryEnabled bool
		want         bool
	}{
		{"disabled", Subscription{Enabled: false, NextChargeDate: today}, true, false},
		{"charge day", Subscription{Enabled: true, NextChargeDate: today}, false, true},
		{"not due", Subscription{Enabled: true, NextChargeDate: today.AddDays(1)}, true, false},
		{"retry day", Subscription{Enabled: true, NextChargeDate: today.AddDays(-2), NextRetryDate: &retry}, true, true},
		{"retry day with retries off", Subscription{Enabled: true, NextChargeDate: today.AddDays(-2), NextRetryDate: &retry}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.ShouldCharge(today, tt.retryEnabled))
		})
	}
}

func TestSubscription_Advance(t *testing.T) {
	today := MustParseDate("2026-05-10")
	retry := today
	s := Subscription{
		Enabled:               true,
		IsTrial:               true,
		NextChargeDate:        today,
		NextRetryDate:         &retry,
		RetryCount:            2,
		SubscriptionPeriod:    PeriodMonth,
		SubscriptionFrequency: 1,
		LastOrderID:           "old",
	}

	s.Advance(today, "new")

	assert.Equal(t, "2026-06-10", s.NextChargeDate.String())
	assert.Nil(t, s.NextRetryDate)
	assert.Zero(t, s.RetryCount)
	assert.False(t, s.IsTrial)
	assert.Equal(t, "new", s.LastOrderID)
}

func TestSubscription_AdvanceAfterLateRetry(t *testing.T) {
	today := MustParseDate("2026-05-10")
	s := Subscription{
		Enabled:               true,
		NextChargeDate:        MustParseDate("2026-05-01"),
		SubscriptionPeriod:    PeriodDay,
		SubscriptionFrequency: 7,
	}

	s.Advance(today, "")

	assert.Equal(t, "2026-05-17", s.NextChargeDate.String())
}

func TestSubscription_HandleFailure_RetryThenCancel(t *testing.T) {
	today := MustParseDate("2026-05-10")
	policy := RetryPolicy{Enabled: true, MaxRetries: 3, FrequencyDays: 2}
	s := Subscription{Enabled: true, RetryCount: 2, NextChargeDate: today}

	outcome := s.HandleFailure(today, policy)
	assert.Equal(t, RetryScheduled, outcome)
	require.NotNil(t, s.NextRetryDate)
	assert.Equal(t, "2026-05-12", s.NextRetryDate.String())
	assert.Equal(t, 3, s.RetryCount)
	assert.True(t, s.Enabled)

	outcome = s.HandleFailure(*s.NextRetryDate, policy)
	assert.Equal(t, RetryExhausted, outcome)
	assert.False(t, s.Enabled)
	assert.Equal(t, 3, s.RetryCount)
	assert.Nil(t, s.NextRetryDate)
}

func TestSubscription_HandleFailure_RetryDisabledKeepsCounter(t *testing.T) {
	s := Subscription{Enabled: true, RetryCount: 0}

	outcome := s.HandleFailure(MustParseDate("2026-05-10"), RetryPolicy{Enabled: false, MaxRetries: 3})

	assert.Equal(t, RetryExhausted, outcome)
	assert.False(t, s.Enabled)
	assert.Zero(t, s.RetryCount)
}

func TestSubscription_HandleFailure_NeverExceedsMax(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	today := MustParseDate("2026-01-01")

	for i := 0; i < 500; i++ {
		policy := RetryPolicy{Enabled: r.IntN(4) > 0, MaxRetries: r.IntN(6), FrequencyDays: 1 + r.IntN(3)}
		s := Subscription{Enabled: true, RetryCount: r.IntN(policy.MaxRetries + 1)}

		for run := 0; run < 10 && s.Enabled; run++ {
			reachedMax := s.RetryCount == policy.MaxRetries
			s.HandleFailure(today.AddDays(run), policy)

			require.LessOrEqual(t, s.RetryCount, policy.MaxRetries)
			if reachedMax {
				require.False(t, s.Enabled)
			}
		}
		assert.False(t, s.Enabled)
	}
}
