// Package notification delivers AQI alerts to a subject's contacts.
//
// The Dispatcher fans an alert out to every configured Channel. A send
// that fails is persisted to a FallbackStore (one record per failed send)
// for later redelivery by the worker; a send that succeeds is written to
// the AlertLog. Dispatch itself never retries.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Errors.
var (
	ErrNoDestinations   = errors.New("subject has no reachable contacts")
	ErrFallbackNotFound = errors.New("fallback record not found")
)

// Method identifies a delivery channel.
type Method string

const (
	MethodEmail Method = "email"
	MethodPush  Method = "push"
)

// Message is one alert addressed to one destination.
type Message struct {
	SubjectID   string
	Destination string // email address or push token
	Subject     string
	Body        string
	Tier        aqi.Tier
}

// Channel sends messages over a single delivery method.
type Channel interface {
	Method() Method
	Send(ctx context.Context, msg Message) error
}

// Contacts are the destinations a subject has agreed to be reached at.
type Contacts struct {
	Email      string
	PushTokens []string
}

// Destinations returns the addresses usable by method.
func (c Contacts) Destinations(m Method) []string {
	switch m {
	case MethodEmail:
		if c.Email == "" {
			return nil
		}
		return []string{c.Email}
	case MethodPush:
		return c.PushTokens
	default:
		return nil
	}
}

// ContactResolver looks up a subject's contacts.
type ContactResolver interface {
	Contacts(ctx context.Context, subjectID string) (Contacts, error)
}

// FailedMessage is a send that could not be delivered.
type FailedMessage struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Channel     Method    `json:"channel"`
	Destination string    `json:"destination"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Tier        aqi.Tier  `json:"tier"`
	LastError   string    `json:"last_error"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message rebuilds the message that failed.
func (f FailedMessage) Message() Message {
	return Message{
		SubjectID:   f.SubjectID,
		Destination: f.Destination,
		Subject:     f.Subject,
		Body:        f.Body,
		Tier:        f.Tier,
	}
}

// FallbackStore persists failed messages until they are redelivered.
type FallbackStore interface {
	Save(ctx context.Context, f FailedMessage) error
	// List returns pending records, oldest first. Records with maxAttempts
	// or more attempts are left out; maxAttempts <= 0 returns every record.
	List(ctx context.Context, limit, maxAttempts int) ([]FailedMessage, error)
	// RecordAttempt increments Attempts and stores lastErr.
	RecordAttempt(ctx context.Context, id, lastErr string) error
	Delete(ctx context.Context, id string) error
}

// SentAlert is one successful delivery.
type SentAlert struct {
	SubjectID string
	Tier      aqi.Tier
	Method    Method
	SentAt    time.Time
}

// AlertLog records successful deliveries.
type AlertLog interface {
	Record(ctx context.Context, a SentAlert) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]SentAlert, error)
}
