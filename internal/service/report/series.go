package report

import (
	"math"
	"time"

	"github.com/jwalitptl/clinic-core/internal/model"
)

// DefaultMonthlyThreshold is the range length in days above which buckets
// become monthly
const DefaultMonthlyThreshold = 60

// BuildSeries sums points into dense buckets covering [from, to]. Days are
// taken in loc. Empty buckets are kept.
func BuildSeries(points []model.Point, from, to model.Date, loc *time.Location, threshold int) model.Series {
	if loc == nil {
		loc = time.UTC
	}
	if threshold <= 0 {
		threshold = DefaultMonthlyThreshold
	}
	if to.Before(from) {
		from, to = to, from
	}

	granularity := model.GranularityDay
	if from.DaysUntil(to)+1 > threshold {
		granularity = model.GranularityMonth
	}

	var buckets []model.Bucket
	index := map[string]int{}
	for d := bucketStart(from, granularity); !d.After(to); d = next(d, granularity) {
		index[d.String()] = len(buckets)
		buckets = append(buckets, model.Bucket{Start: d})
	}

	for _, p := range points {
		day := model.DateOf(p.At.In(loc))
		if day.Before(from) || day.After(to) {
			continue
		}
		i, ok := index[bucketStart(day, granularity).String()]
		if !ok {
			continue
		}
		buckets[i].Value += p.Value
		buckets[i].Count++
	}

	return model.Series{Granularity: granularity, From: from, To: to, Buckets: buckets}
}

func bucketStart(d model.Date, g model.Granularity) model.Date {
	if g == model.GranularityMonth {
		t := d.Time()
		return model.NewDate(t.Year(), t.Month(), 1)
	}
	return d
}

func next(d model.Date, g model.Granularity) model.Date {
	if g == model.GranularityMonth {
		t := d.Time().AddDate(0, 1, 0)
		return model.NewDate(t.Year(), t.Month(), 1)
	}
	return d.AddDays(1)
}

// GrowthRate is the percentage change from previous to current. It is 0 when
// previous is 0 and never NaN or Inf.
func GrowthRate(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	rate := (current - previous) / previous * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}

func total(s model.Series) float64 {
	var sum float64
	for _, b := range s.Buckets {
		sum += b.Value
	}
	return sum
}
