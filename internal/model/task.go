package model

import "time"

// Credentials authenticate against the marketplace seller API.
type Credentials struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// Complete reports whether both halves are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.APIKey != ""
}

// Submission is one accepted bulk import.
type Submission struct {
	SubmittedAt time.Time        `json:"submitted_at"`
	SessionID   string           `json:"session_id"`
	Items       []ListingPayload `json:"items"`
	TaskID      int64            `json:"task_id"`
}

// TaskItemError is a per-item validation message from the import task.
type TaskItemError struct {
	Code        string `json:"code"`
	Field       string `json:"field,omitempty"`
	Level       string `json:"level,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	AttributeID int64  `json:"attribute_id,omitempty"`
}

// TaskItemStatus is the import state of one submitted offer.
type TaskItemStatus struct {
	OfferID   string          `json:"offer_id"`
	Status    string          `json:"status"`
	Errors    []TaskItemError `json:"errors,omitempty"`
	ProductID int64           `json:"product_id"`
}

// TaskInfo is the state of an import task.
type TaskInfo struct {
	CheckedAt time.Time        `json:"checked_at"`
	Items     []TaskItemStatus `json:"items"`
	TaskID    int64            `json:"task_id"`
	Total     int              `json:"total"`
}

// StatusCounts tallies items by status.
func (t *TaskInfo) StatusCounts() map[string]int {
	counts := make(map[string]int)
	for _, item := range t.Items {
		counts[item.Status]++
	}
	return counts
}
