package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestBuildSeriesDaily(t *testing.T) {
	from := model.NewDate(2030, time.March, 1)
	to := model.NewDate(2030, time.March, 7)
	points := []model.Point{
		{At: at(2030, time.March, 2, 9), Value: 50},
		{At: at(2030, time.March, 2, 15), Value: 30},
		{At: at(2030, time.March, 7, 23), Value: 20},
		{At: at(2030, time.March, 8, 0), Value: 999},
		{At: at(2030, time.February, 28, 23), Value: 999},
	}

	s := BuildSeries(points, from, to, time.UTC, 0)
	assert.Equal(t, model.GranularityDay, s.Granularity)
	require.Len(t, s.Buckets, 7)
	assert.True(t, s.Buckets[0].Start.Equal(from))
	assert.Zero(t, s.Buckets[0].Value)
	assert.Equal(t, 80.0, s.Buckets[1].Value)
	assert.Equal(t, 2, s.Buckets[1].Count)
	assert.Equal(t, 20.0, s.Buckets[6].Value)
	assert.Equal(t, 100.0, total(s))
}

func TestBuildSeriesUsesClinicZone(t *testing.T) {
	day := model.NewDate(2030, time.March, 1)
	minus5 := time.FixedZone("minus5", -5*3600)
	points := []model.Point{
		// still the 1st five hours behind UTC
		{At: at(2030, time.March, 2, 3), Value: 1},
	}

	assert.Zero(t, total(BuildSeries(points, day, day, time.UTC, 0)))
	assert.Equal(t, 1.0, total(BuildSeries(points, day, day, minus5, 0)))
}

func TestBuildSeriesMonthly(t *testing.T) {
	from := model.NewDate(2030, time.January, 15)
	to := model.NewDate(2030, time.April, 10)
	points := []model.Point{
		{At: at(2030, time.January, 10, 12), Value: 999},
		{At: at(2030, time.January, 20, 12), Value: 5},
		{At: at(2030, time.March, 31, 12), Value: 7},
		{At: at(2030, time.April, 10, 12), Value: 3},
	}

	s := BuildSeries(points, from, to, time.UTC, 60)
	assert.Equal(t, model.GranularityMonth, s.Granularity)
	require.Len(t, s.Buckets, 4)
	assert.Equal(t, "2030-01-01", s.Buckets[0].Start.String())
	assert.Equal(t, 5.0, s.Buckets[0].Value)
	assert.Zero(t, s.Buckets[1].Value)
	assert.Equal(t, 7.0, s.Buckets[2].Value)
	assert.Equal(t, 3.0, s.Buckets[3].Value)
}

func TestBuildSeriesThresholdBoundary(t *testing.T) {
	from := model.NewDate(2030, time.January, 1)

	assert.Equal(t, model.GranularityDay, BuildSeries(nil, from, from.AddDays(59), time.UTC, 60).Granularity)
	assert.Equal(t, model.GranularityMonth, BuildSeries(nil, from, from.AddDays(60), time.UTC, 60).Granularity)
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     float64
	}{
		{"no previous", 5, 0, 0},
		{"both zero", 0, 0, 0},
		{"growth", 150, 100, 50},
		{"decline", 50, 100, -50},
		{"flat", 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GrowthRate(tt.current, tt.previous)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
		})
	}
}
