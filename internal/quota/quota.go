// Package quota enforces the per-tenant daily upload limit.
//
// Admission is a single conditional upsert so concurrent requests for the
// same tenant and day can never push the stored count past the limit.
package quota

import (
	"time"
)

// DayFormat is the layout of the day key stored with each window.
const DayFormat = "2006-01-02"

// Admission is the outcome of one TryAdmit call.
type Admission struct {
	Admitted bool   `json:"admitted"`
	TenantID string `json:"tenant_id"`
	Day      string `json:"day"`
	Count    int    `json:"count"`
	Limit    int    `json:"limit"`
}

// Remaining returns the uploads left in the window, never negative.
func (a Admission) Remaining() int {
	return max(a.Limit-a.Count, 0)
}

// Window reports a tenant's usage for one day.
type Window struct {
	TenantID  string    `json:"tenant_id"`
	Day       string    `json:"day"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// DayKey returns the calendar date of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayFormat)
}

// NextReset returns the start of the day after t in loc.
func NextReset(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
