package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardGenerate builds and publishes the executive dashboard.
	TaskDashboardGenerate = "dashboard:generate"

	// TriggerSchedule marks runs started by the cron scheduler.
	TriggerSchedule = "schedule"
	// TriggerManual marks runs requested from the CLI.
	TriggerManual = "manual"
)

// DashboardGeneratePayload describes why a dashboard run was requested.
type DashboardGeneratePayload struct {
	Trigger     string `json:"trigger"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewDashboardGenerateTask constructs an Asynq task. Runs are never retried;
// the next scheduled run supersedes a failed one.
func NewDashboardGenerateTask(payload DashboardGeneratePayload, timeout time.Duration) (*asynq.Task, error) {
	if payload.Trigger == "" {
		payload.Trigger = TriggerManual
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(0), asynq.Queue(QueueDefault)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TaskDashboardGenerate, data, opts...), nil
}
