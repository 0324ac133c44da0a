package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Channels []Channel
	Contacts ContactResolver
	Fallback FallbackStore
	AlertLog AlertLog
	Logger   zerolog.Logger
}

// Dispatcher delivers alerts through every configured channel.
type Dispatcher struct {
	channels []Channel
	contacts ContactResolver
	fallback FallbackStore
	alertLog AlertLog
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		channels: cfg.Channels,
		contacts: cfg.Contacts,
		fallback: cfg.Fallback,
		alertLog: cfg.AlertLog,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Subject builds the alert subject line for a tier.
func Subject(tier aqi.Tier) string {
	return "Air quality alert: " + strings.ToUpper(string(tier))
}

// Dispatch sends message to every destination of subjectID. It returns
// ErrNoDestinations when no channel has a destination, and otherwise a
// joined error naming each failed send. Failed sends are persisted to the
// fallback store before Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, subjectID string, tier aqi.Tier, message string) error {
	contacts, err := d.contacts.Contacts(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("resolve contacts: %w", err)
	}

	var (
		errs []error
		sent int
	)
	for _, ch := range d.channels {
		for _, dest := range contacts.Destinations(ch.Method()) {
			msg := Message{
				SubjectID:   subjectID,
				Destination: dest,
				Subject:     Subject(tier),
				Body:        message,
				Tier:        tier,
			}

			if err := ch.Send(ctx, msg); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch.Method(), err))
				d.saveFallback(ctx, ch.Method(), msg, err)
				continue
			}

			sent++
			d.recordSent(ctx, subjectID, tier, ch.Method())
		}
	}

	if sent == 0 && len(errs) == 0 {
		return ErrNoDestinations
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) saveFallback(ctx context.Context, method Method, msg Message, sendErr error) {
	if d.fallback == nil {
		return
	}

	now := d.now().UTC()
	record := FailedMessage{
		ID:          uuid.NewString(),
		SubjectID:   msg.SubjectID,
		Channel:     method,
		Destination: msg.Destination,
		Subject:     msg.Subject,
		Body:        msg.Body,
		Tier:        msg.Tier,
		LastError:   sendErr.Error(),
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Use a context that survives request cancellation so the record is kept.
	if err := d.fallback.Save(context.WithoutCancel(ctx), record); err != nil {
		d.logger.Error().
			Err(err).
			Str("subject_id", msg.SubjectID).
			Str("channel", string(method)).
			Msg("failed to persist undelivered alert")
		return
	}

	d.logger.Warn().
		Err(sendErr).
		Str("subject_id", msg.SubjectID).
		Str("channel", string(method)).
		Str("fallback_id", record.ID).
		Msg("alert delivery failed, stored for redelivery")
}

func (d *Dispatcher) recordSent(ctx context.Context, subjectID string, tier aqi.Tier, method Method) {
	if d.alertLog == nil {
		return
	}
	err := d.alertLog.Record(ctx, SentAlert{
		SubjectID: subjectID,
		Tier:      tier,
		Method:    method,
		SentAt:    d.now().UTC(),
	})
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("subject_id", subjectID).
			Msg("failed to record sent alert")
	}
}

// channel returns the configured channel for method.
func (d *Dispatcher) channel(method Method) (Channel, bool) {
	for _, ch := range d.channels {
		if ch.Method() == method {
			return ch, true
		}
	}
	return nil, false
}
