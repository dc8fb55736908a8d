package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var recurringChargesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "klarna_recurring_charges_total",
		Help: "Due subscription charges by outcome.",
	},
	[]string{"outcome"},
)

var recurringProfileSaveFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "klarna_recurring_profile_save_failures_total",
		Help: "Customer profiles whose subscription list could not be written back.",
	},
)

var recurringProfilesSkipped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "klarna_recurring_profiles_skipped_total",
		Help: "Customer profiles skipped because their subscription list could not be read.",
	},
)

func init() {
	prometheus.MustRegister(recurringChargesTotal, recurringProfileSaveFailures, recurringProfilesSkipped)
}
