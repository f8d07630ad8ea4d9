package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ciphergenix/internal/storage"
)

// DailyStats summarizes recorded exchanges for one UTC day.
type DailyStats struct {
	Date             string    `json:"date"`
	TotalExchanges   int       `json:"total_exchanges"`
	PromptChars      int       `json:"prompt_chars"`
	ResponseChars    int       `json:"response_chars"`
	AvgResponseChars int       `json:"avg_response_chars"`
	EmptyPrompts     int       `json:"empty_prompts"`
	ExchangesByHour  [24]int   `json:"exchanges_by_hour"`
	FirstExchangeAt  time.Time `json:"first_exchange_at"`
	LastExchangeAt   time.Time `json:"last_exchange_at"`
}

// AnalyzeDay aggregates entries whose timestamp falls on day (UTC).
func AnalyzeDay(entries []storage.ChatEntry, day time.Time) *DailyStats {
	day = day.UTC()
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{Date: startOfDay.Format("2006-01-02")}
	for _, e := range entries {
		ts := e.Timestamp.UTC()
		if ts.Before(startOfDay) || !ts.Before(endOfDay) {
			continue
		}
		stats.TotalExchanges++
		stats.PromptChars += utf8.RuneCountInString(e.UserPrompt)
		stats.ResponseChars += utf8.RuneCountInString(e.Response)
		stats.ExchangesByHour[ts.Hour()]++
		if strings.TrimSpace(e.UserPrompt) == "" {
			stats.EmptyPrompts++
		}
		if stats.FirstExchangeAt.IsZero() || ts.Before(stats.FirstExchangeAt) {
			stats.FirstExchangeAt = ts
		}
		if ts.After(stats.LastExchangeAt) {
			stats.LastExchangeAt = ts
		}
	}
	if stats.TotalExchanges > 0 {
		stats.AvgResponseChars = stats.ResponseChars / stats.TotalExchanges
	}
	return stats
}

// Summary renders a one-paragraph report for the process log.
func (ds *DailyStats) Summary() string {
	if ds.TotalExchanges == 0 {
		return fmt.Sprintf("CipherGenix usage for %s: no exchanges recorded.", ds.Date)
	}
	peak, peakCount := 0, 0
	for h, c := range ds.ExchangesByHour {
		if c > peakCount {
			peak, peakCount = h, c
		}
	}
	return fmt.Sprintf("CipherGenix usage for %s: %d exchanges, %d prompt chars, avg reply %d chars, busiest hour %02d:00 UTC (%d).",
		ds.Date, ds.TotalExchanges, ds.PromptChars, ds.AvgResponseChars, peak, peakCount)
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
