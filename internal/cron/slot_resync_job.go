package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/enums"
	"github.com/themelab-io/themeboard-backend/pkg/logger"
	"github.com/themelab-io/themeboard-backend/pkg/outbox"
	"github.com/themelab-io/themeboard-backend/pkg/outbox/payloads"
)

const defaultSnapshotTTL = time.Hour

// schedulerAggregateID identifies the singleton scheduler aggregate in
// resync events.
var schedulerAggregateID = uuid.MustParse("a3d0b5ce-0a51-4df7-9c61-0f6de2f0b0e7")

type snapshotStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ActiveSlotsKey() string
}

// SlotResyncJobParams configure the cache distributor.
type SlotResyncJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Reader      adRequestReader
	Snapshot    snapshotStore
	Outbox      outboxEmitter
	SnapshotTTL time.Duration
}

// NewSlotResyncJob builds the cron job that pushes the full active snapshot
// to the cache and announces it on the event stream. Consumers that missed
// incremental activation events converge on the next resync cycle.
func NewSlotResyncJob(params SlotResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("ad request reader required")
	}
	if params.Snapshot == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &slotResyncJob{
		logg:     params.Logger,
		db:       params.DB,
		reader:   params.Reader,
		snapshot: params.Snapshot,
		outbox:   params.Outbox,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

type slotResyncJob struct {
	logg     *logger.Logger
	db       txRunner
	reader   adRequestReader
	snapshot snapshotStore
	outbox   outboxEmitter
	ttl      time.Duration
	now      func() time.Time
}

func (j *slotResyncJob) Name() string { return "slot-resync" }

func (j *slotResyncJob) Run(ctx context.Context) error {
	active, err := j.reader.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("query active placements: %w", err)
	}
	queued, err := j.reader.CountQueued(ctx)
	if err != nil {
		return fmt.Errorf("count queued placements: %w", err)
	}

	slots := make([]payloads.ResyncSlot, 0, len(active))
	for _, request := range active {
		if request.DisplayOrder == nil || request.ExpiresAt == nil {
			continue
		}
		slots = append(slots, payloads.ResyncSlot{
			AdRequestID:  request.ID,
			ThemeID:      request.ThemeID,
			DisplayOrder: *request.DisplayOrder,
			ExpiresAt:    *request.ExpiresAt,
		})
	}

	event := payloads.AdSlotResyncEvent{
		Slots:      slots,
		SlotCount:  len(slots),
		QueueDepth: int(queued),
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := j.snapshot.Set(ctx, j.snapshot.ActiveSlotsKey(), raw, j.ttl); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdSlotResync,
			AggregateType: enums.AggregateScheduler,
			AggregateID:   schedulerAggregateID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data:          event,
		})
	}); err != nil {
		return fmt.Errorf("emit resync event: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"slot_count":  event.SlotCount,
		"queue_depth": event.QueueDepth,
	})
	j.logg.Info(logCtx, "active slot snapshot distributed")
	return nil
}
