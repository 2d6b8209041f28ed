package payloads

import (
	"time"

	"github.com/google/uuid"
)

// AdSlotSubmittedEvent signals a new paid placement request was accepted.
type AdSlotSubmittedEvent struct {
	AdRequestID   uuid.UUID `json:"adRequestId"`
	ThemeID       uuid.UUID `json:"themeId"`
	UserID        uuid.UUID `json:"userId"`
	Status        string    `json:"status"`
	DisplayOrder  *int      `json:"displayOrder,omitempty"`
	QueuePosition *int      `json:"queuePosition,omitempty"`
	DurationDays  int       `json:"durationDays"`
	PricePoints   int64     `json:"pricePoints"`
}

// AdSlotActivatedEvent is emitted when a request takes a slot, either at
// submission or during a sweep promotion.
type AdSlotActivatedEvent struct {
	AdRequestID  uuid.UUID `json:"adRequestId"`
	ThemeID      uuid.UUID `json:"themeId"`
	DisplayOrder int       `json:"displayOrder"`
	StartedAt    time.Time `json:"startedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AdSlotExpiredEvent describes a placement whose paid interval elapsed.
type AdSlotExpiredEvent struct {
	AdRequestID  uuid.UUID `json:"adRequestId"`
	ThemeID      uuid.UUID `json:"themeId"`
	DisplayOrder int       `json:"displayOrder"`
	ExpiredAt    time.Time `json:"expiredAt"`
}

// AdSlotCanceledEvent is emitted whenever an owner withdraws a queued request.
type AdSlotCanceledEvent struct {
	AdRequestID uuid.UUID `json:"adRequestId"`
	ThemeID     uuid.UUID `json:"themeId"`
	CanceledAt  time.Time `json:"canceledAt"`
	Refunded    bool      `json:"refunded"`
}

// AdSlotResyncEvent carries the full active snapshot written to the cache.
// It is a pure function of board state: two resyncs over an unchanged board
// marshal to identical bytes. The sync time rides on the envelope's
// occurredAt, not the payload.
type AdSlotResyncEvent struct {
	Slots      []ResyncSlot `json:"slots"`
	SlotCount  int          `json:"slotCount"`
	QueueDepth int          `json:"queueDepth"`
}

// ResyncSlot is one active placement inside a resync snapshot.
type ResyncSlot struct {
	AdRequestID  uuid.UUID `json:"adRequestId"`
	ThemeID      uuid.UUID `json:"themeId"`
	DisplayOrder int       `json:"displayOrder"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// PointsDebitedEvent reports a successful charge for a placement.
type PointsDebitedEvent struct {
	UserID      uuid.UUID `json:"userId"`
	AdRequestID uuid.UUID `json:"adRequestId"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
}

// PointsRefundedEvent reports points returned after a queued cancel.
type PointsRefundedEvent struct {
	UserID      uuid.UUID `json:"userId"`
	AdRequestID uuid.UUID `json:"adRequestId"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
}
