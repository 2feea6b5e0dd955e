package schema

// ScheduleEntry is one persisted trigger bound to a workflow name.
// Exactly one of the variant fields is meaningful depending on Type.
type ScheduleEntry struct {
	Type     TriggerType `json:"type"`
	Cron     string      `json:"cron,omitempty"`     // five-field cron expression (type=cron)
	Datetime string      `json:"datetime,omitempty"` // ISO-8601 fire time (type=once)
}

// TriggerType enumerates the kinds of schedule triggers.
type TriggerType string

const (
	TriggerTypeCron TriggerType = "cron"
	TriggerTypeOnce TriggerType = "once"
)

// Schedule is the full persisted schedule record: workflow name -> entry.
// At most one entry per workflow name; saves overwrite the prior entry.
type Schedule map[string]ScheduleEntry
