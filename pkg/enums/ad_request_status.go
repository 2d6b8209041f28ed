package enums

import "fmt"

// AdRequestStatus maps to the ad_request_status enum in Postgres.
type AdRequestStatus string

const (
	// AdRequestStatusPendingQueue means the request waits for a slot, FIFO.
	AdRequestStatusPendingQueue AdRequestStatus = "pending_queue"
	// AdRequestStatusActive means the request holds one of the paid slots.
	AdRequestStatusActive AdRequestStatus = "active"
	// AdRequestStatusExpired means the paid interval elapsed.
	AdRequestStatusExpired AdRequestStatus = "expired"
	// AdRequestStatusCanceled means the owner withdrew the request.
	AdRequestStatusCanceled AdRequestStatus = "canceled"
)

var validAdRequestStatuses = []AdRequestStatus{
	AdRequestStatusPendingQueue,
	AdRequestStatusActive,
	AdRequestStatusExpired,
	AdRequestStatusCanceled,
}

// IsValid reports whether the value matches the canonical ad_request_status enum.
func (s AdRequestStatus) IsValid() bool {
	for _, candidate := range validAdRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the request still holds or is waiting for a slot.
func (s AdRequestStatus) IsLive() bool {
	return s == AdRequestStatusActive || s == AdRequestStatusPendingQueue
}

// IsTerminal reports whether no further transitions are allowed.
func (s AdRequestStatus) IsTerminal() bool {
	return s == AdRequestStatusExpired || s == AdRequestStatusCanceled
}

// ParseAdRequestStatus converts raw input into AdRequestStatus.
func ParseAdRequestStatus(value string) (AdRequestStatus, error) {
	for _, candidate := range validAdRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ad request status %q", value)
}
