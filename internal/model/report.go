package model

import "time"

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// Point is one dated value fed into a series
type Point struct {
	At    time.Time
	Value float64
}

type Bucket struct {
	Start Date    `json:"start"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

type Series struct {
	Granularity Granularity `json:"granularity"`
	From        Date        `json:"from"`
	To          Date        `json:"to"`
	Buckets     []Bucket    `json:"buckets"`
}

type Report struct {
	Series
	Total         float64 `json:"total"`
	PreviousTotal float64 `json:"previous_total"`
	GrowthRate    float64 `json:"growth_rate"`
}
