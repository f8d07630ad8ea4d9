package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyTimestampLayout is the naive UTC isoformat written by earlier deployments.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999999"

// ChatEntry is one prompt/response exchange. Entries are immutable once
// appended and are read back in write order.
type ChatEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	UserPrompt string    `json:"user_prompt"`
	Response   string    `json:"response"`
}

// UnmarshalJSON also accepts lines written under the old "ciphergenix_response"
// key and timestamps without a zone designator (taken as UTC).
func (e *ChatEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Timestamp  string  `json:"timestamp"`
		UserPrompt string  `json:"user_prompt"`
		Response   *string `json:"response"`
		Legacy     *string `json:"ciphergenix_response"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var ts time.Time
	if raw.Timestamp != "" {
		var err error
		ts, err = time.Parse(time.RFC3339Nano, raw.Timestamp)
		if err != nil {
			ts, err = time.ParseInLocation(legacyTimestampLayout, raw.Timestamp, time.UTC)
			if err != nil {
				return fmt.Errorf("parse timestamp %q: %w", raw.Timestamp, err)
			}
		}
	}

	*e = ChatEntry{Timestamp: ts.UTC(), UserPrompt: raw.UserPrompt}
	switch {
	case raw.Response != nil:
		e.Response = *raw.Response
	case raw.Legacy != nil:
		e.Response = *raw.Legacy
	}
	return nil
}

// Recorder abstracts persistence of chat entries.
// LoadAll returns entries oldest first; a store with no data yields an empty slice.
// Append must add exactly one whole record.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Append(entry ChatEntry) error
	LoadAll() ([]ChatEntry, error)
}
