package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// JoinLeadTime is how long before the start a join link becomes actionable.
const JoinLeadTime = 10 * time.Minute

const canonicalDateLayout = "2006-01-02"

type clockFormat struct {
	name   string
	layout string
}

// callTimeFormats are tried in order and the first successful parse wins, even when a later
// entry would also accept the input. H:mm and HH:mm share one Go layout because "15" accepts
// both one and two digit hours.
var callTimeFormats = []clockFormat{
	{name: "h:mm a", layout: "3:04 pm"},
	{name: "H:mm", layout: "15:04"},
	{name: "h:mm A", layout: "3:04 PM"},
	{name: "HH:mm:ss", layout: "15:04:05"},
	{name: "h:mm:ss a", layout: "3:04:05 pm"},
	{name: "h:mm:ss A", layout: "3:04:05 PM"},
	{name: "h:mma", layout: "3:04pm"},
	{name: "h:mmA", layout: "3:04PM"},
}

// callDateLayouts are accepted call dates, normalised to YYYY-MM-DD before use.
var callDateLayouts = []string{
	canonicalDateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Mon Jan 02 2006",
}

var errUnparseableTime = errors.New("unparseable call time")

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
	Format string
}

// Seconds returns the offset of the clock time from midnight.
func (c ClockTime) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// ParseCallTime parses a free-form time string with the first matching format.
func ParseCallTime(raw string) (ClockTime, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ClockTime{}, errUnparseableTime
	}
	for _, f := range callTimeFormats {
		t, err := time.Parse(f.layout, value)
		if err != nil {
			continue
		}
		return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Format: f.name}, nil
	}
	return ClockTime{}, fmt.Errorf("%w: %q", errUnparseableTime, raw)
}

// NormalizeCallDate returns raw as YYYY-MM-DD. Timestamps keep the calendar day of their own offset.
func NormalizeCallDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range callDateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return t.Format(canonicalDateLayout), nil
	}
	return "", fmt.Errorf("unparseable call date %q", raw)
}

// CallBounds resolves the start and end instants of a call in its own timezone.
// An end clock earlier than the start is read as crossing midnight into the next day.
func CallBounds(date, startTime, endTime, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	normalized, err := NormalizeCallDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day, err := time.ParseInLocation(canonicalDateLayout, normalized, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startClock, err := ParseCallTime(startTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endClock, err := ParseCallTime(endTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, startClock.Hour, startClock.Minute, startClock.Second, 0, loc)
	endDay := d
	if endClock.Seconds() < startClock.Seconds() {
		endDay++
	}
	end := time.Date(y, m, endDay, endClock.Hour, endClock.Minute, endClock.Second, 0, loc)
	return start, end, nil
}

// IsCallJoinable reports whether now lies in [start-10m, end]. Unparseable input yields false.
func IsCallJoinable(date, startTime, endTime, timezone string, now time.Time) bool {
	start, end, err := CallBounds(date, startTime, endTime, timezone)
	if err != nil {
		return false
	}
	return within(now, start.Add(-JoinLeadTime), end)
}

// IsCallOngoing reports whether now lies in [start, end]. Unparseable input yields false.
func IsCallOngoing(date, startTime, endTime, timezone string, now time.Time) bool {
	start, end, err := CallBounds(date, startTime, endTime, timezone)
	if err != nil {
		return false
	}
	return within(now, start, end)
}

// EvaluateCallWindow computes both predicates for a stored call.
func EvaluateCallWindow(call *models.ScheduledCall, now time.Time) models.CallWindow {
	window := models.CallWindow{At: now}
	if call == nil {
		return window
	}
	window.CallID = call.ID
	window.Joinable = IsCallJoinable(call.Date, call.StartTime, call.EndTime, call.Timezone, now)
	window.Ongoing = IsCallOngoing(call.Date, call.StartTime, call.EndTime, call.Timezone, now)
	return window
}

func within(now, from, to time.Time) bool {
	return !now.Before(from) && !now.After(to)
}
