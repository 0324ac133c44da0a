// Package chatbot answers air-quality questions in short conversations.
// Replies come from keyword intents, a location command, or the 15-day
// forecast for the subject's chosen city.
package chatbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/forecast"
	"github.com/breatheroute/aqiguard/internal/weather"
)

// DefaultCity is used until the subject sets a location.
const DefaultCity = "São Paulo"

// ListDays is how many days a plain AQI question lists.
const ListDays = 7

const fallbackReply = "Sorry, I didn't understand. Could you rephrase?"

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Forecaster predicts AQI at a place. *forecast.Service satisfies it.
type Forecaster interface {
	Forecast(ctx context.Context, q weather.Query, profile aqi.HealthProfile) forecast.Result
}

// ProfileSource supplies a subject's health flags. *user.Service satisfies it.
type ProfileSource interface {
	HealthProfile(ctx context.Context, userID string) (aqi.HealthProfile, error)
}

// Config configures a Bot.
type Config struct {
	Forecaster  Forecaster
	Profiles    ProfileSource // optional
	Store       *ContextStore
	Intents     []Intent // nil means DefaultIntents
	DefaultCity string
	Logger      zerolog.Logger
}

// Bot produces replies and keeps conversation context.
type Bot struct {
	forecaster  Forecaster
	profiles    ProfileSource
	store       *ContextStore
	intents     []Intent
	defaultCity string
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a bot.
func New(cfg Config) *Bot {
	intents := cfg.Intents
	if intents == nil {
		intents = DefaultIntents()
	}
	store := cfg.Store
	if store == nil {
		store = NewContextStore()
	}
	city := cfg.DefaultCity
	if city == "" {
		city = DefaultCity
	}
	return &Bot{
		forecaster:  cfg.Forecaster,
		profiles:    cfg.Profiles,
		store:       store,
		intents:     intents,
		defaultCity: city,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Reply answers text for subjectID and records the exchange.
func (b *Bot) Reply(ctx context.Context, subjectID, text string) string {
	reply := b.respond(ctx, subjectID, text)
	b.store.Append(subjectID, Exchange{User: text, Bot: reply, At: b.now().UTC()})
	return reply
}

// History returns the subject's exchanges, oldest first.
func (b *Bot) History(subjectID string) []Exchange {
	return b.store.History(subjectID)
}

func (b *Bot) respond(ctx context.Context, subjectID, text string) string {
	msg := normalize(text)

	if in, ok := match(b.intents, msg); ok {
		return in.Response
	}

	if containsAny(msg, "city", "cidade", "local") {
		words := strings.Fields(msg)
		location := capitalize(words[len(words)-1])
		b.store.SetLocation(subjectID, location)
		return fmt.Sprintf("Ok, I'm now using '%s' as your location.", location)
	}

	if containsAny(msg, "aqi", "air quality", "qualidade do ar") {
		return b.answerAQI(ctx, subjectID, msg)
	}

	return fallbackReply
}

func (b *Bot) answerAQI(ctx context.Context, subjectID, msg string) string {
	city := b.store.Location(subjectID)
	if city == "" {
		city = b.defaultCity
	}

	result := b.forecaster.Forecast(ctx, weather.InCity(city), b.profile(ctx, subjectID))
	points := result.Points
	if len(points) == 0 {
		return fmt.Sprintf("Sorry, I have no forecast for %s right now.", city)
	}

	// The forecast starts tomorrow, so "today" gets the listing below.
	if containsAny(msg, "tomorrow", "amanhã", "amanha") {
		p := points[0]
		return fmt.Sprintf("Tomorrow in %s the predicted AQI is %s (%s).", city, formatAQI(p.PredictedAQI), p.Tier)
	}

	if date := datePattern.FindString(msg); date != "" {
		for _, p := range points {
			if p.DateString() == date {
				return fmt.Sprintf("On %s in %s the predicted AQI is %s (%s).", date, city, formatAQI(p.PredictedAQI), p.Tier)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "AQI forecast for the next days in %s:", city)
	for _, p := range points[:min(ListDays, len(points))] {
		fmt.Fprintf(&sb, "\n%s: %s (%s)", p.DateString(), formatAQI(p.PredictedAQI), p.Tier)
	}
	return sb.String()
}

func (b *Bot) profile(ctx context.Context, subjectID string) aqi.HealthProfile {
	if b.profiles == nil {
		return aqi.HealthProfile{}
	}
	p, err := b.profiles.HealthProfile(ctx, subjectID)
	if err != nil {
		b.logger.Debug().Err(err).Str("subject_id", subjectID).Msg("forecasting without health profile")
		return aqi.HealthProfile{}
	}
	return p
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

// formatAQI prints at most two decimals without trailing zeros.
func formatAQI(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
