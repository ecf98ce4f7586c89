package inscriptions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/inscription-grid/pkg/client"
)

// DateLayout is the inbound calendar date format.
const DateLayout = "2006-01-02"

// Mode selects which upstream listing a fetch walks.
type Mode string

const (
	// ModeHeld lists inscriptions currently owned by the address.
	ModeHeld Mode = "held"

	// ModeTransferred lists transfer activity and keeps only "send" events.
	ModeTransferred Mode = "transferred"
)

// SendEventType is the activity type tag, matched case-sensitively.
const SendEventType = "send"

// DateRange is an inclusive calendar-date filter. A nil bound is unbounded.
// From after To is allowed and simply matches nothing.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Contains reports whether the calendar date of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := calendarDate(t)
	if r.From != nil && d.Before(calendarDate(*r.From)) {
		return false
	}
	if r.To != nil && d.After(calendarDate(*r.To)) {
		return false
	}
	return true
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Record is one item of an Ordiscan inscriptions or activity page.
type Record struct {
	InscriptionID string `json:"inscription_id"`
	Timestamp     string `json:"timestamp"`
	Type          string `json:"type,omitempty"`
}

type page struct {
	Data []Record `json:"data"`
}

// FetchError describes a failed fetch. StatusCode is zero when no upstream
// response was involved.
type FetchError struct {
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"error"`
}

// Outcome is either a list of inscription IDs or an error, never both.
type Outcome struct {
	IDs []string
	Err *FetchError
}

// Succeeded builds a success outcome. A nil slice becomes an empty list.
func Succeeded(ids []string) Outcome {
	if ids == nil {
		ids = []string{}
	}
	return Outcome{IDs: ids}
}

// Failed builds an error outcome from err, keeping the upstream status and
// response text when err carries them.
func Failed(err error) Outcome {
	var oe *client.OrdiscanError
	if errors.As(err, &oe) && oe.StatusCode != 0 {
		return Outcome{Err: &FetchError{StatusCode: oe.StatusCode, Message: oe.Message}}
	}
	return Outcome{Err: &FetchError{Message: err.Error()}}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// MarshalJSON encodes a success as a JSON array and an error as
// {"error": ..., "status_code": ...}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(o.Err)
	}
	if o.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.IDs)
}

// UnmarshalJSON accepts either shape produced by MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty outcome")
	}
	switch data[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		*o = Succeeded(ids)
		return nil
	case '{':
		var fe FetchError
		if err := json.Unmarshal(data, &fe); err != nil {
			return err
		}
		*o = Outcome{Err: &fe}
		return nil
	default:
		return fmt.Errorf("unexpected outcome %s", data)
	}
}
