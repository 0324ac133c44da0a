package forecast

import (
	"iter"
	"math"
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Days is the forecast horizon.
const Days = 15

// DateLayout formats forecast dates.
const DateLayout = "2006-01-02"

// Snapshot is the last observed feature row and the day it was observed.
type Snapshot struct {
	Date     time.Time
	Features Features
}

// Point is one forecast day.
type Point struct {
	Date         time.Time
	PredictedAQI float64
	Tier         aqi.Tier
}

// DateString returns the point date as YYYY-MM-DD.
func (p Point) DateString() string {
	return p.Date.Format(DateLayout)
}

// Adapter turns a snapshot into forecast points using a Model.
type Adapter struct {
	model Model
}

// NewAdapter creates an adapter over model.
func NewAdapter(model Model) *Adapter {
	return &Adapter{model: model}
}

// Forecast yields Days points dated the day after the snapshot onward. Only
// the calendar features change between days. The sequence can be ranged
// more than once; each pass calls the model again.
func (a *Adapter) Forecast(s Snapshot) iter.Seq[Point] {
	start := civilDate(s.Date)
	return func(yield func(Point) bool) {
		for i := 1; i <= Days; i++ {
			day := start.AddDate(0, 0, i)
			v := round2(a.model.Predict(s.Features.WithDate(day)))
			if !yield(Point{Date: day, PredictedAQI: v, Tier: aqi.ClassifyFloat(v)}) {
				return
			}
		}
	}
}

// civilDate drops the time of day, keeping the location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
