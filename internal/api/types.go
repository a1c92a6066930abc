package api

// StartRequest is the body of POST /api/sessions/{id}/start. Omitted
// numeric fields take the server defaults.
type StartRequest struct {
	FeedOffset *int     `json:"feed_offset,omitempty"`
	MaxItems   *int     `json:"max_items,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	ClientID   string   `json:"client_id"`
	APIKey     string   `json:"api_key"`
	FeedURL    string   `json:"feed_url,omitempty"`
	Keyword    string   `json:"keyword,omitempty"`
}

// DecisionRequest is the body of POST .../decisions/{decision}/resolve.
// A missing description category id falls back to the type id.
type DecisionRequest struct {
	DescriptionCategoryID *int64 `json:"chosen_description_category_id,omitempty"`
	TypeID                int64  `json:"chosen_type_id"`
}

// SessionResponse identifies a session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionListResponse lists the live sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}

// SubmitResponse reports the outcome of a submission. TaskID is nil when
// nothing was sent.
type SubmitResponse struct {
	TaskID  *int64 `json:"task_id"`
	Message string `json:"message"`
}
