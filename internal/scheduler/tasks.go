package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAutomationEventDue = "automation.event.due"

type AutomationEventDuePayload struct {
	OutboxID string `json:"outboxId"`
	TenantID string `json:"tenantId"`
}

func NewAutomationEventDueTask(payload AutomationEventDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationEventDue, data), nil
}

func ParseAutomationEventDuePayload(task *asynq.Task) (AutomationEventDuePayload, error) {
	var payload AutomationEventDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationEventDuePayload{}, err
	}
	return payload, nil
}
