// Package models defines the core data structures for visitbot.
//
// It includes inbound event and outbound prompt types, the completed
// submission record, and the canonical column order expected by the
// backing store. These types are shared across modules.
package models

import "errors"

// EventKind classifies an inbound user event after the transport adapter
// has extracted its payload.
type EventKind string

const (
	// EventText is a free-text answer.
	EventText EventKind = "text"
	// EventSelection is a choice-key selected from an enumerated set.
	EventSelection EventKind = "selection"
	// EventPhoto is a binary image payload.
	EventPhoto EventKind = "photo"
)

// Navigation trigger keys carried as selection payloads. The transport
// adapter maps whatever its channel uses (buttons, keywords) onto these.
const (
	TriggerStart   = "start_form"
	TriggerBack    = "go_back"
	TriggerConfirm = "confirm_submit"
	TriggerCancel  = "cancel_submit"
	TriggerAbort   = "cancel_form"
	TriggerStatus  = "show_status"
	TriggerHelp    = "show_help"
)

// Validation constants for inbound events.
const (
	// MaxTextLength bounds a single free-text answer.
	MaxTextLength = 1024
	// MaxPhotoBytes bounds an evidence photo payload (10 MiB).
	MaxPhotoBytes = 10 << 20
)

// Error variables for contract violations and invalid events.
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrInvalidKind      = errors.New("invalid event kind")
	ErrEmptyPayload     = errors.New("event payload is empty")
	ErrTextTooLong      = errors.New("text payload exceeds maximum length")
	ErrPhotoTooLarge    = errors.New("photo payload exceeds maximum size")
	ErrUnknownField     = errors.New("unknown field key")
	ErrNoNextState      = errors.New("no next state defined for current state")
	ErrUnknownState     = errors.New("unknown session state")
	ErrRecordIncomplete = errors.New("submission record is missing required values")
)

// Event is an inbound user event delivered by a transport adapter.
// Exactly one of Text, Selection, or Photo carries the payload,
// according to Kind.
type Event struct {
	UserID    string    `json:"user_id"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Selection string    `json:"selection,omitempty"`
	Photo     []byte    `json:"photo,omitempty"`
	Time      int64     `json:"time,omitempty"`
}

// IsValidEventKind checks if the given event kind is supported.
func IsValidEventKind(k EventKind) bool {
	switch k {
	case EventText, EventSelection, EventPhoto:
		return true
	default:
		return false
	}
}

// Validate checks an inbound event against the transport contract.
func (e *Event) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	switch e.Kind {
	case EventText:
		if e.Text == "" {
			return ErrEmptyPayload
		}
		if len(e.Text) > MaxTextLength {
			return ErrTextTooLong
		}
	case EventSelection:
		if e.Selection == "" {
			return ErrEmptyPayload
		}
	case EventPhoto:
		if len(e.Photo) == 0 {
			return ErrEmptyPayload
		}
		if len(e.Photo) > MaxPhotoBytes {
			return ErrPhotoTooLarge
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// Choice is one selectable option rendered by the transport adapter.
type Choice struct {
	Key   string `json:"key"`   // stable selection key sent back as Event.Selection
	Label string `json:"label"` // display label shown to the user
}

// Prompt is an outbound message from the stepper. The adapter renders it
// however is idiomatic for its channel: buttons, numbered list, plain text.
type Prompt struct {
	Text      string   `json:"text"`
	Choices   []Choice `json:"choices,omitempty"`
	AllowBack bool     `json:"allow_back,omitempty"`
}

// SubmissionResult is the gateway's verdict on one submission. On failure
// Message must be safe to display to the end user verbatim.
type SubmissionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIStatus labels the outcome of an API call.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for API endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
