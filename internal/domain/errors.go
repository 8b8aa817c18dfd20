package domain

import "errors"

var (
	// ErrFetch marks a source that was unreachable or unparsable.
	ErrFetch = errors.New("fetch failed")
	// ErrStorage marks unavailable or failing persistence.
	ErrStorage = errors.New("storage unavailable")
	// ErrDelivery marks a subscriber that could not receive an event.
	ErrDelivery = errors.New("delivery failed")
	// ErrRunInProgress is returned to triggers dropped by the single-flight rule.
	ErrRunInProgress = errors.New("ingestion run already in progress")
	// ErrCoolingDown is returned to triggers arriving during cooldown.
	ErrCoolingDown = errors.New("ingestion scheduler cooling down")
)
