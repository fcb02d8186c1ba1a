package models

// RateUpdate is the payload fanned out on the rate-updates topic whenever
// a gateway instance fetches fresh rates. Other replicas mirror it into
// their cache so only one of them pays the upstream call.
type RateUpdate struct {
	Prefix     string             `json:"prefix"`
	TTLSeconds int64              `json:"ttl_seconds"`
	Rates      map[string]float64 `json:"rates"`
}
