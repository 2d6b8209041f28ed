package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAdRequest    OutboxAggregateType = "ad_request"
	AggregatePointAccount OutboxAggregateType = "point_account"
	AggregateScheduler    OutboxAggregateType = "scheduler"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAdRequest,
	AggregatePointAccount,
	AggregateScheduler,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAdSlotSubmitted OutboxEventType = "ad_slot_submitted"
	EventAdSlotActivated OutboxEventType = "ad_slot_activated"
	EventAdSlotExpired   OutboxEventType = "ad_slot_expired"
	EventAdSlotCanceled  OutboxEventType = "ad_slot_canceled"
	EventAdSlotResync    OutboxEventType = "ad_slot_resync"
	EventPointsDebited   OutboxEventType = "points_debited"
	EventPointsRefunded  OutboxEventType = "points_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAdSlotSubmitted,
	EventAdSlotActivated,
	EventAdSlotExpired,
	EventAdSlotCanceled,
	EventAdSlotResync,
	EventPointsDebited,
	EventPointsRefunded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
