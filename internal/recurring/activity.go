package recurring

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
)

const errTypeInvalidDate = "InvalidChargeDate"

// Runner runs one recurring charge pass. *service.RecurringEngine
// implements it.
type Runner interface {
	Run(ctx context.Context, today domain.Date) (*service.RunSummary, error)
}

// Activities holds the recurring charge activities.
type Activities struct {
	engine Runner
	now    func() time.Time
}

// NewActivities creates the recurring charge activities.
func NewActivities(engine Runner) *Activities {
	return &Activities{engine: engine, now: time.Now}
}

// ChargeDueSubscriptions charges every subscription due on day (YYYY-MM-DD).
// An empty day means today in UTC.
func (a *Activities) ChargeDueSubscriptions(ctx context.Context, day string) (*service.RunSummary, error) {
	logger := activity.GetLogger(ctx)

	today := domain.NewDate(a.now())
	if day != "" {
		parsed, err := domain.ParseDate(day)
		if err != nil {
			return nil, temporal.NewNonRetryableApplicationError("invalid charge date", errTypeInvalidDate, err)
		}
		today = parsed
	}

	logger.Info("Charging due subscriptions", "date", today.String())
	summary, err := a.engine.Run(ctx, today)
	if err != nil {
		logger.Error("Recurring charge pass failed", "date", today.String(), "error", err)
		return summary, err
	}

	logger.Info("Recurring charge pass done",
		"date", summary.Date,
		"due", summary.Due,
		"charged", summary.Charged,
		"retries_scheduled", summary.RetriesScheduled,
		"cancelled", summary.Cancelled,
	)
	return summary, nil
}
