package fees

import (
	"time"

	"gorm.io/gorm"
)

// FeeRate is one row of the fee schedule: the per-item charge for a
// membership tier. Read on every fee computation, mutated only by the
// administrator.
type FeeRate struct {
	gorm.Model `json:"-"`
	Tier       string    `gorm:"uniqueIndex" json:"tier"`
	PerItem    uint64    `json:"per_item"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScheduleResponse is the caller-facing view of the full schedule.
type ScheduleResponse struct {
	Rates     map[string]uint64 `json:"rates"`
	Timestamp time.Time         `json:"timestamp"`
}
