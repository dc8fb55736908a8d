// Package recurring schedules the recurring charge engine on Temporal. A
// cron workflow with a fixed id keeps a single pass running at a time.
package recurring

import (
	"context"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
)

const (
	WorkflowName     = "RecurringChargeWorkflow"
	WorkflowID       = "klarna-recurring-charges"
	DefaultTaskQueue = "klarna-recurring"
)

// RecurringChargeWorkflow runs one charge pass for the day the workflow
// fires on. The engine is safe to replay, so the activity may be retried.
func RecurringChargeWorkflow(ctx workflow.Context) (*service.RunSummary, error) {
	logger := workflow.GetLogger(ctx)
	day := domain.NewDate(workflow.Now(ctx)).String()
	logger.Info("RecurringChargeWorkflow started", "date", day)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Minute,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeInvalidDate},
		},
	})

	var a *Activities
	var summary service.RunSummary
	if err := workflow.ExecuteActivity(ctx, a.ChargeDueSubscriptions, day).Get(ctx, &summary); err != nil {
		logger.Error("Recurring charge pass failed", "date", day, "error", err)
		return nil, fmt.Errorf("recurring charge pass %s: %w", day, err)
	}

	logger.Info("RecurringChargeWorkflow completed", "date", day, "charged", summary.Charged)
	return &summary, nil
}

// Registry is the part of a Temporal worker used to register the workflow.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

// Register adds the workflow and activities to a worker.
func Register(w Registry, activities *Activities) {
	w.RegisterWorkflowWithOptions(RecurringChargeWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(activities)
}

// Schedule starts the cron workflow. When it already runs, the running
// execution is returned instead of a second one.
func Schedule(ctx context.Context, c client.Client, taskQueue, cronSchedule string) (client.WorkflowRun, error) {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	opts := client.StartWorkflowOptions{
		ID:                       WorkflowID,
		TaskQueue:                taskQueue,
		CronSchedule:             cronSchedule,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, WorkflowName)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", WorkflowName, err)
	}
	return run, nil
}
