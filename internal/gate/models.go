package gate

import (
	"time"

	"gorm.io/gorm"
)

// EngineState is the process-wide singleton row: the pause flag, the
// administrator identity fixed at bootstrap, and the trade id counter.
// Ids come from the counter rather than the table's autoincrement so a
// cancelled (deleted) trade's id is never reused.
type EngineState struct {
	gorm.Model   `json:"-"`
	Paused       bool      `json:"paused"`
	AdminAccount string    `json:"admin_account"`
	NextTradeID  uint64    `json:"next_trade_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}
