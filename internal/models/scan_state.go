package models

import "time"

// ScanState holds the in-progress counting context for one operator so a
// restarted device resumes where the operator left off.
type ScanState struct {
	OperatorID  string                 `json:"operator_id"`
	SessionID   string                 `json:"session_id"`
	CurrentStep string                 `json:"current_step"`
	LastBarcode string                 `json:"last_barcode,omitempty"`
	TempData    map[string]interface{} `json:"temp_data,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
