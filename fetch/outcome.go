package fetch

import "github.com/cockroachdb/errors"

var (
	// ErrPermanent marks errors that retrying cannot fix.
	ErrPermanent = errors.New("permanent failure")
	// ErrRetriesExhausted marks transient errors that outlived the retry policy.
	ErrRetriesExhausted = errors.New("exceeded max retries")
)

// Permanent marks err so that Retry and Client stop immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrPermanent)
}

// Kind classifies the terminal (or, for TransientFailure, per-attempt) result
// of an item.
type Kind int

const (
	Success Kind = iota
	TransientFailure
	PermanentFailure
	AlreadyDone
	// Aborted items were interrupted by cancellation. They are neither failed
	// nor done and will be picked up again by the next run.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	case AlreadyDone:
		return "already_done"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome is what happened to an item.
type Outcome struct {
	Item     Item
	Kind     Kind
	Records  []Record
	Err      error
	Attempts int
}

// Terminal reports whether the item reached a final state for this run.
func (o Outcome) Terminal() bool {
	return o.Kind == Success || o.Kind == PermanentFailure || o.Kind == AlreadyDone
}
