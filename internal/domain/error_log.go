package domain

import (
	"encoding/json"
	"time"
)

// ErrorLogRecord is a row of the error_log table written by the bot core.
type ErrorLogRecord struct {
	ID             int64           `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UserQuery      string          `json:"user_query"`
	ErrorMessage   string          `json:"error_message"`
	Context        json.RawMessage `json:"context,omitempty"`
	AdditionalInfo json.RawMessage `json:"additional_info,omitempty"`
}

// ErrorStats summarizes the error_log table for the stats page.
type ErrorStats struct {
	Total      int64      `json:"total"`
	SinceCount int64      `json:"since_count"`
	Since      time.Time  `json:"since"`
	LastAt     *time.Time `json:"last_at,omitempty"`
}
