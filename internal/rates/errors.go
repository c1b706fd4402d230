package rates

import "fmt"

// RefreshError reports a failed fetch-and-store cycle. Every caller
// collapsed onto the same flight observes the same instance.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh rates: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// RateNotFoundError reports that no usable rate exists for an ordered
// pair, after direct, inverse, and pivot-chained lookups plus one
// refresh attempt. No default rate is ever substituted.
type RateNotFoundError struct {
	From string
	To   string
	Err  error
}

func (e *RateNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate not found for %s/%s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("rate not found for %s/%s", e.From, e.To)
}

func (e *RateNotFoundError) Unwrap() error { return e.Err }
