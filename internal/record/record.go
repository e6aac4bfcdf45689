// Package record converts raw worksheet rows into normalized employee
// records and classifies them by medical book urgency.
//
// The source worksheets are maintained by hand and use inconsistent column
// naming, so normalization works off prioritized field lists with a
// heuristic fallback scan rather than a fixed schema.
package record

import "fmt"

// DaysAbsent is the sentinel DaysLeft value for employees without a usable
// medical book entry (missing book or unparsable source value).
const DaysAbsent = -999

// CriticalWindowDays is the threshold below which a valid medical book is
// considered critically close to expiry.
const CriticalWindowDays = 30

// Record is the normalized representation of one employee, independent of
// how the source worksheet names its columns.
type Record struct {
	Name           string
	Position       string
	DaysLeft       int
	HasMedicalBook bool
	// RawDaysValue preserves the source cell the days were derived from.
	RawDaysValue string
}

// Key derives the identity key used to detect additions and removals
// between checks. The key deliberately embeds DaysLeft: an employee whose
// countdown moved since the last check is treated as a new identity, while
// an unchanged row maps to the same key.
func (r Record) Key() string {
	return fmt.Sprintf("%s_%d_%t", r.Name, r.DaysLeft, r.HasMedicalBook)
}

// Status buckets an employee by medical book urgency.
type Status string

const (
	StatusNoMedicalBook Status = "no_medical"
	StatusExpired       Status = "expired"
	StatusCritical      Status = "critical"
	StatusOK            Status = "ok"
)

// Classify buckets a record into exactly one status. A missing medical book
// wins over any DaysLeft value, including non-negative ones.
func Classify(r Record) Status {
	switch {
	case !r.HasMedicalBook:
		return StatusNoMedicalBook
	case r.DaysLeft < 0:
		return StatusExpired
	case r.DaysLeft <= CriticalWindowDays:
		return StatusCritical
	default:
		return StatusOK
	}
}

// Partition splits records into the three problematic buckets, preserving
// input order. Records classified StatusOK are dropped.
func Partition(records []Record) (expired, critical, noBook []Record) {
	for _, r := range records {
		switch Classify(r) {
		case StatusExpired:
			expired = append(expired, r)
		case StatusCritical:
			critical = append(critical, r)
		case StatusNoMedicalBook:
			noBook = append(noBook, r)
		}
	}
	return expired, critical, noBook
}
