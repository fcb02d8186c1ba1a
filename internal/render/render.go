package render

import (
	"fmt"
	"sort"
	"strings"

	"currency-gateway/internal/models"
)

// ANSI escape codes, emitted for curl clients only.
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Underline = "\033[4m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	White  = "\033[37m"

	BrightBlue = "\033[94m"
)

const width = 80

func center(text string, visible int) string {
	if visible >= width {
		return text
	}
	pad := (width - visible) / 2
	return strings.Repeat(" ", pad) + text
}

func header(title, subtitle string) string {
	var b strings.Builder
	rule := Bold + BrightBlue + strings.Repeat("=", width) + Reset
	b.WriteString(rule + "\n")
	b.WriteString(center(Bold+White+title+Reset, len(title)) + "\n")
	if subtitle != "" {
		b.WriteString(center(Dim+subtitle+Reset, len(subtitle)) + "\n")
	}
	b.WriteString(rule + "\n")
	return b.String()
}

// Table renders a rate set sorted by symbol.
func Table(base string, rates models.RateSet) string {
	var b strings.Builder
	b.WriteString(header("CURRENCY RATES", "Base: "+base))
	b.WriteString("\n")

	head := fmt.Sprintf("%s%s%-10s %15s%s", Bold, Underline, "CURRENCY", "RATE", Reset)
	b.WriteString(center(head, 26) + "\n")

	symbols := make([]string, 0, len(rates))
	for sym := range rates {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		color := Cyan
		switch sym {
		case "USD":
			color = Green
		case "EUR":
			color = Yellow
		}
		row := fmt.Sprintf("%s%-10s%s %s%15.4f%s", color, sym, Reset, White, rates[sym], Reset)
		b.WriteString(center(row, 26) + "\n")
	}

	b.WriteString("\n" + Dim + "crrcy.sh" + Reset + "\n")
	return b.String()
}

// Graph renders a crude per-target chart over the series range.
func Graph(ts *models.TimeSeries) string {
	const rows = 10

	var b strings.Builder
	b.WriteString(header("HISTORICAL RATES", "Base: "+ts.Meta.Base))

	targets := make([]string, 0, len(ts.Series))
	for t := range ts.Series {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	for _, target := range targets {
		points := ts.Series[target]

		dates := make([]string, 0, len(points))
		for d := range points {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		if len(dates) == 0 {
			b.WriteString(fmt.Sprintf("\n%s%s%s  %sno data%s\n", Bold, target, Reset, Dim, Reset))
			continue
		}

		lo, hi := points[dates[0]], points[dates[0]]
		for _, d := range dates {
			v := points[d]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		b.WriteString(fmt.Sprintf("\n%s%s%s  %s%.6f → %.6f%s\n", Bold, target, Reset, Dim, points[dates[0]], points[dates[len(dates)-1]], Reset))

		span := hi - lo
		for row := rows; row >= 1; row-- {
			threshold := lo
			if span > 0 {
				threshold = lo + span*float64(row-1)/float64(rows-1)
			}
			line := make([]byte, len(dates))
			for i, d := range dates {
				if points[d] >= threshold {
					line[i] = '#'
				} else {
					line[i] = ' '
				}
			}
			b.WriteString(Cyan + string(line) + Reset + "\n")
		}
		b.WriteString(Dim + dates[0] + strings.Repeat(" ", maxInt(1, len(dates)-len(dates[0])-len(dates[len(dates)-1]))) + dates[len(dates)-1] + Reset + "\n")
	}

	if ts.Meta.LastUpdated != "" {
		b.WriteString("\n" + Dim + "last updated: " + ts.Meta.LastUpdated + Reset + "\n")
	}
	return b.String()
}

func Usage() string {
	var b strings.Builder
	b.WriteString(header("crrcy.sh", "currency exchange rates in your terminal"))
	b.WriteString(`
  GET /latest                 all rates against USD
  GET /{targets}              selected rates against USD
  GET /{base}/{targets}       selected rates, comma or plus delimited
  GET /{base}/latest          all rates against {base}
  GET /last/{base}/{targets}/{time}[/{step}]
                              history, time like 7d, 3m, 1y or plain days

  curl clients get this view, everyone else gets JSON.
`)
	return b.String()
}

// Error wraps a short message in red for terminal clients.
func Error(msg string) string {
	return Red + msg + Reset + "\n"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
