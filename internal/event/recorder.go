// Package event provides domain event recording for editor sessions.
// Events that touch a stored campaign are written to the campaign history
// via the activity.Store interface, then published to the in-process event
// bus for downstream consumers.
package event

import (
	"context"

	"github.com/matthewbaird/adops/internal/activity"
)

// Recorder records domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by writing an activity entry for
// every event that names a campaign. If a Publisher is set, every event is
// also published to the event bus after the store write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes the campaign history entry, if any, and publishes evt.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if evt.CampaignID != "" && r.store != nil {
		entry := activity.Entry{
			EventID:    evt.ID,
			EventType:  evt.EventType,
			OccurredAt: evt.OccurredAt,
			CampaignID: evt.CampaignID,
			SessionID:  evt.SessionID,
			Summary:    evt.Summary,
			Category:   evt.Category,
			Payload:    evt.Payload,
		}
		if err := r.store.WriteEntries(ctx, []activity.Entry{entry}); err != nil {
			return err
		}
	}

	// Publish to event bus after successful store write.
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// PublishOnly adapts a Publisher to Recorder without a history store.
type PublishOnly struct{ Publisher }

// Record publishes evt.
func (p PublishOnly) Record(ctx context.Context, evt DomainEvent) error {
	if p.Publisher != nil {
		p.Publish(ctx, evt)
	}
	return nil
}
