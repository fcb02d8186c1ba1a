package models

// RateSet maps an upper-case symbol to its value expressed as
// "units of symbol per one unit of the base currency".
// A symbol missing from the map could not be resolved.
type RateSet map[string]float64

type RateLimitResult struct {
	Allowed bool   `json:"allowed"`
	Blocked bool   `json:"blocked"`
	Count   int64  `json:"count,omitempty"`
	Limit   int64  `json:"limit,omitempty"`
	Message string `json:"message,omitempty"`
}

type TimeSeriesMeta struct {
	Base        string   `json:"base"`
	Targets     []string `json:"targets"`
	Step        int      `json:"step"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// TimeSeries holds per-target date->value points. Dates are "2006-01-02"
// strings; a date absent from a target's map means the point could not be
// resolved and was dropped.
type TimeSeries struct {
	Meta   TimeSeriesMeta                `json:"meta"`
	Series map[string]map[string]float64 `json:"series"`
}
