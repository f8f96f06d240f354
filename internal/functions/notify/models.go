// internal/functions/notify/models.go
package notify

import "congregation-functions/internal/models"

// Input is the request body of the notify-event function.
type Input struct {
	EventType     string                 `json:"eventType"`
	EventData     map[string]interface{} `json:"eventData"`
	TestMode      bool                   `json:"testMode,omitempty"`
	TestRecipient string                 `json:"testRecipient,omitempty"`
}

// Output is the response body of the notify-event function.
type Output struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	DispatchID string   `json:"dispatchId,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	CC         []string `json:"cc,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Event is the validated form of an Input.
type Event struct {
	Type          string
	Data          map[string]interface{}
	TestMode      bool
	TestRecipient string
}

// DispatchResult is what internal callers get back. The transport layer
// alone decides HTTP codes; a degraded result still travels as HTTP 200
// outside test mode.
type DispatchResult struct {
	DispatchID string
	Status     string
	Message    string
	To         []models.Recipient
	CC         []models.Recipient
	SentAt     string // ISO 8601
}

// Dispatch statuses
const (
	StatusSent         = "sent"
	StatusNoRecipients = "no-recipients"
	StatusDegraded     = "degraded"
)

// Event types
const (
	TypeDepartmentJoinRequest = "department-join-request"
	TypeMinistryJoinRequest   = "ministry-join-request"
	TypeSuggestion            = "suggestion"
	TypeSupportRequest        = "support-request"
	TypeDonation              = "donation"
	TypeContactSubmission     = "contact-submission"
	TypePrayerRequest         = "prayer-request"
	TypeTestimonyRequest      = "testimony-request"
	TypeWeeklyDigest          = "weekly-digest"
	TypeBoardSummary          = "board-summary"
)

// Departments with fixed recipient rules
const (
	DepartmentIntercession = "Intercession"
	DepartmentModeration   = "Moderation"
)
