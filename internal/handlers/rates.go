package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"currency-gateway/internal/popular"
	"currency-gateway/internal/ratelimit"
	"currency-gateway/internal/render"
	"currency-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxDataPoints = 365

type RatesHandler struct {
	resolver *service.Resolver
	limiter  *ratelimit.Limiter
	tracker  *popular.Tracker
}

func NewRatesHandler(resolver *service.Resolver, limiter *ratelimit.Limiter, tracker *popular.Tracker) *RatesHandler {
	return &RatesHandler{resolver: resolver, limiter: limiter, tracker: tracker}
}

// parsePathArgs splits a comma or plus delimited symbol list.
func parsePathArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(raw, ",", "+"), "+") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(body))
}

func (h *RatesHandler) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isCurl(r) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		w.Write([]byte(render.Error(msg)))
		return
	}
	writeJSONError(w, status, msg)
}

// GetRates serves /, /{targets} and /{base}/{targets}. A single path
// segment is a target list against USD; LATEST asks for the full table.
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	query := strings.Trim(chi.URLParam(r, "*"), "/")

	if query == "" || isUsageQuery(query) {
		h.usage(w, r)
		return
	}

	parts := strings.Split(query, "/")

	base := "USD"
	var symbols []string
	if len(parts) > 1 {
		base = strings.ToUpper(parts[0])
		symbols = parsePathArgs(parts[1])
	} else {
		symbols = parsePathArgs(parts[0])
	}

	h.tracker.Bump(r.Context(), base)

	rates, err := h.resolver.GetRates(r.Context(), base, symbols)
	if err != nil {
		log.Printf("rate resolution failed (%s): %v", base, err)
		h.fail(w, r, http.StatusInternalServerError, "could not resolve rates")
		return
	}

	if isCurl(r) {
		writeText(w, render.Table(base, rates))
		return
	}
	writeData(w, rates)
}

func isUsageQuery(query string) bool {
	switch strings.ToLower(query) {
	case "usage", "help", "info":
		return true
	}
	return false
}

func (h *RatesHandler) usage(w http.ResponseWriter, r *http.Request) {
	if isCurl(r) {
		writeText(w, render.Usage())
		return
	}
	writeData(w, map[string]any{
		"message": "use /usage for help",
		"endpoints": map[string]string{
			"current_rates":              "GET /latest",
			"current_rates_with_base":    "GET /{base}/latest",
			"current_rates_with_targets": "GET /{base}/{targets}",
			"historical":                 "GET /last/{base}/{targets}/{time}",
			"historical_with_step":       "GET /last/{base}/{targets}/{time}/{step}",
		},
	})
}

// parseTimeRange understands 7d, 3m, 1y and plain day counts.
func parseTimeRange(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("empty time range")
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(raw, "d"):
		raw = strings.TrimSuffix(raw, "d")
	case strings.HasSuffix(raw, "m"):
		raw, multiplier = strings.TrimSuffix(raw, "m"), 30
	case strings.HasSuffix(raw, "y"):
		raw, multiplier = strings.TrimSuffix(raw, "y"), 365
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid time format")
	}
	return n * multiplier, nil
}

func autoStep(days int) int {
	switch {
	case days > 365:
		return 30
	case days > 90:
		return 10
	default:
		return 1
	}
}

// GetSeries serves /last/{base}/{targets}/{time}[/{step}] and its
// /hist and /historical aliases.
func (h *RatesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	query := strings.Trim(chi.URLParam(r, "*"), "/")
	parts := strings.Split(query, "/")
	if len(parts) < 3 {
		h.fail(w, r, http.StatusBadRequest, "invalid format, use /last/{base}/{targets}/{time}[/{step}]")
		return
	}

	base := strings.ToUpper(parts[0])
	targets := parsePathArgs(parts[1])

	days, err := parseTimeRange(parts[2])
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid time format")
		return
	}

	step := autoStep(days)
	if len(parts) > 3 {
		explicit, err := strconv.Atoi(parts[3])
		if err != nil || explicit <= 0 {
			h.fail(w, r, http.StatusBadRequest, "step must be greater than 0")
			return
		}
		step = explicit
	}

	if estimated := days / step; estimated > maxDataPoints {
		h.fail(w, r, http.StatusBadRequest,
			fmt.Sprintf("requested data points (%d) exceeds maximum (%d), increase step or reduce range", estimated, maxDataPoints))
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	h.tracker.Bump(r.Context(), base)

	series, err := h.resolver.GetSeries(r.Context(), base, targets, start, end, step)
	if err != nil {
		log.Printf("series resolution failed (%s): %v", base, err)
		h.fail(w, r, http.StatusInternalServerError, "could not resolve series")
		return
	}

	if isCurl(r) {
		writeText(w, render.Graph(series))
		return
	}
	writeData(w, series)
}

// ResetLimit and UnblockIP are the rate limiter admin operations.
func (h *RatesHandler) ResetLimit(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := h.limiter.Reset(r.Context(), ip); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeData(w, map[string]string{"reset": ip})
}

func (h *RatesHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := h.limiter.Unblock(r.Context(), ip); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "unblock failed")
		return
	}
	writeData(w, map[string]string{"unblocked": ip})
}
