// Package retention computes legally-driven retention expiry dates. The
// calculator is pure and idempotent: it may be re-invoked whenever its inputs
// change, e.g. once an employee's exit date becomes known.
package retention

import (
	"fmt"
	"time"
)

// Trigger identifies the reference event a retention period is measured from.
type Trigger string

const (
	TriggerCreation     Trigger = "creation"
	TriggerExit         Trigger = "exit"
	TriggerDocumentDate Trigger = "document-date"
)

// Policy is a category's retention rule: the trigger event and the duration in
// whole years.
type Policy struct {
	Trigger Trigger
	Years   int
}

// Dates carries the reference dates a document may provide. DocumentDate and
// ExitDate stay nil when unknown.
type Dates struct {
	CreatedAt    time.Time
	DocumentDate *time.Time
	ExitDate     *time.Time
}

// Expiry computes reference-date-for-trigger + duration. A nil result with a
// nil error means the expiry is deferred: the trigger requires a date that is
// not yet known (an exit-triggered category for a still-active employee, or a
// document-date trigger without a document date). Recompute once the date is set.
func Expiry(p Policy, d Dates) (*time.Time, error) {
	var ref time.Time
	switch p.Trigger {
	case TriggerCreation:
		ref = d.CreatedAt
	case TriggerExit:
		if d.ExitDate == nil {
			return nil, nil
		}
		ref = *d.ExitDate
	case TriggerDocumentDate:
		if d.DocumentDate == nil {
			return nil, nil
		}
		ref = *d.DocumentDate
	default:
		return nil, fmt.Errorf("unknown retention trigger %q", p.Trigger)
	}

	if ref.IsZero() {
		return nil, fmt.Errorf("zero reference date for trigger %q", p.Trigger)
	}

	expiry := ref.AddDate(p.Years, 0, 0)
	return &expiry, nil
}
