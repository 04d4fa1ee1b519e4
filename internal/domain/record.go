package domain

import (
	"encoding/json"
	"time"
)

// Record is one entry of a session's ordered message log. Seq starts at 1 and
// increases by one per appended message.
type Record struct {
	Seq     uint64          `json:"seq"`
	At      time.Time       `json:"at"`
	Type    string          `json:"type"`
	Message AppMessage      `json:"-"`
	Raw     json.RawMessage `json:"raw"`
}
