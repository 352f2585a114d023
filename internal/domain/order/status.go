package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPlaced     Status = "placed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ErrUnknownStatus is returned for status values outside the lifecycle.
var ErrUnknownStatus = errors.New("unknown order status")

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// rank orders the forward path; cancelled is off the path.
var rank = map[Status]int{
	StatusPlaced:     1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
	StatusCancelled:  0,
}

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := rank[st]; !ok {
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
	return st, nil
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Transition validates moving from s to next. Orders only move forward along
// placed, processing, shipped, delivered, and may be cancelled until they are
// terminal. Setting the current status again is allowed.
func (s Status) Transition(next Status) error {
	if _, ok := rank[next]; !ok {
		return errors.Wrapf(ErrUnknownStatus, "%q", next)
	}
	if s == next {
		return nil
	}
	if s.Terminal() {
		return &InvalidTransitionError{From: s, To: next}
	}
	if next == StatusCancelled || rank[next] > rank[s] {
		return nil
	}
	return &InvalidTransitionError{From: s, To: next}
}
