package events

import "time"

// Event types
const (
	AccessGranted = "access.granted"
)

// Stream names
const (
	AuthorizationEventsStream = "authorization.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// AccessGrantedEvent is published after a grant has been persisted on the
// grantee's record.
type AccessGrantedEvent struct {
	GrantorName    string `json:"grantorName"`
	GranteeName    string `json:"granteeName"`
	AccountNumber  string `json:"accountNumber"`
	AccountSubtype string `json:"accountSubtype"`
	Access         string `json:"access"`
}
