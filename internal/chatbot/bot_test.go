package chatbot_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/chatbot"
	"github.com/breatheroute/aqiguard/internal/forecast"
	"github.com/breatheroute/aqiguard/internal/weather"
)

type fakeForecaster struct {
	mu      sync.Mutex
	queries []weather.Query
	profile aqi.HealthProfile
}

func (f *fakeForecaster) Forecast(_ context.Context, q weather.Query, p aqi.HealthProfile) forecast.Result {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.profile = p
	f.mu.Unlock()

	start := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	points := make([]forecast.Point, forecast.Days)
	for i := range points {
		v := 40 + float64(i)*10.5
		points[i] = forecast.Point{Date: start.AddDate(0, 0, i), PredictedAQI: v, Tier: aqi.ClassifyFloat(v)}
	}
	return forecast.Result{City: q.City, Points: points}
}

func (f *fakeForecaster) lastCity() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1].City
}

type profiles map[string]aqi.HealthProfile

func (p profiles) HealthProfile(_ context.Context, id string) (aqi.HealthProfile, error) {
	hp, ok := p[id]
	if !ok {
		return aqi.HealthProfile{}, errors.New("not found")
	}
	return hp, nil
}

func newBot(f *fakeForecaster) *chatbot.Bot {
	return chatbot.New(chatbot.Config{
		Forecaster: f,
		Profiles:   profiles{"usr_1": {HasAsthma: true}},
		Logger:     zerolog.Nop(),
	})
}

func TestBot_Intents(t *testing.T) {
	bot := newBot(&fakeForecaster{})
	ctx := context.Background()

	assert.Contains(t, bot.Reply(ctx, "usr_1", "Olá!"), "Hello")
	assert.Contains(t, bot.Reply(ctx, "usr_1", "help"), "next 7 days")
	assert.Contains(t, bot.Reply(ctx, "usr_1", "Thanks!"), "welcome")
	assert.Contains(t, bot.Reply(ctx, "usr_1", "What is AQI?"), "0 to 500")
}

func TestBot_KeywordsMatchWholeWords(t *testing.T) {
	bot := newBot(&fakeForecaster{})
	// "this" contains "hi" but must not trigger the greeting.
	assert.Equal(t, "Sorry, I didn't understand. Could you rephrase?", bot.Reply(context.Background(), "usr_1", "this thing"))
}

func TestBot_SetLocation(t *testing.T) {
	f := &fakeForecaster{}
	bot := newBot(f)
	ctx := context.Background()

	reply := bot.Reply(ctx, "usr_1", "minha cidade é campinas")
	assert.Equal(t, "Ok, I'm now using 'Campinas' as your location.", reply)

	bot.Reply(ctx, "usr_1", "aqi")
	assert.Equal(t, "Campinas", f.lastCity())

	bot.Reply(ctx, "usr_2", "aqi")
	assert.Equal(t, chatbot.DefaultCity, f.lastCity(), "location is per subject")
}

func TestBot_Tomorrow(t *testing.T) {
	f := &fakeForecaster{}
	bot := newBot(f)

	reply := bot.Reply(context.Background(), "usr_1", "What is the AQI tomorrow?")
	assert.Equal(t, "Tomorrow in São Paulo the predicted AQI is 40 (green).", reply)
	assert.True(t, f.profile.HasAsthma)

	reply = bot.Reply(context.Background(), "usr_9", "qualidade do ar amanhã")
	assert.Contains(t, reply, "Tomorrow in São Paulo")
	assert.False(t, f.profile.HasAsthma, "unknown subject forecasts without profile")
}

func TestBot_SpecificDate(t *testing.T) {
	bot := newBot(&fakeForecaster{})

	reply := bot.Reply(context.Background(), "usr_1", "AQI on 2026-10-18?")
	assert.Equal(t, "On 2026-10-18 in São Paulo the predicted AQI is 61 (yellow).", reply)
}

func TestBot_ListsSevenDays(t *testing.T) {
	bot := newBot(&fakeForecaster{})

	for _, text := range []string{"air quality", "aqi on 2030-01-01", "aqi today"} {
		reply := bot.Reply(context.Background(), "usr_1", text)
		lines := strings.Split(reply, "\n")
		require.Len(t, lines, 1+chatbot.ListDays, text)
		assert.Equal(t, "AQI forecast for the next days in São Paulo:", lines[0])
		assert.Equal(t, "2026-10-16: 40 (green)", lines[1])
		assert.Equal(t, "2026-10-17: 50.5 (yellow)", lines[2])
	}
}

func TestBot_HistoryPerSubject(t *testing.T) {
	bot := newBot(&fakeForecaster{})
	ctx := context.Background()

	bot.Reply(ctx, "usr_1", "hello")
	bot.Reply(ctx, "usr_1", "gibberish")
	bot.Reply(ctx, "usr_2", "thanks")

	h := bot.History("usr_1")
	require.Len(t, h, 2)
	assert.Equal(t, "hello", h[0].User)
	assert.Equal(t, "Sorry, I didn't understand. Could you rephrase?", h[1].Bot)
	assert.Len(t, bot.History("usr_2"), 1)
	assert.Empty(t, bot.History("usr_3"))
}

func TestContextStore_BoundedHistory(t *testing.T) {
	store := chatbot.NewContextStore()
	for i := 0; i < chatbot.MaxExchanges+10; i++ {
		store.Append("usr_1", chatbot.Exchange{User: fmt.Sprint(i)})
	}

	h := store.History("usr_1")
	require.Len(t, h, chatbot.MaxExchanges)
	assert.Equal(t, "10", h[0].User)
}

func TestContextStore_Concurrent(t *testing.T) {
	store := chatbot.NewContextStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("usr_%d", i%5)
			store.SetLocation(id, "X")
			store.Append(id, chatbot.Exchange{User: "q"})
			_ = store.Location(id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Len(t, store.History(fmt.Sprintf("usr_%d", i)), 10)
	}
}
