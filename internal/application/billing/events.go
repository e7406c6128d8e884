package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netbill/backend/internal/domain/shared"
)

// RecordEvents writes the pending domain events of each aggregate to the
// outbox and clears them. Call it inside the transaction that saves the
// aggregates.
func RecordEvents(ctx context.Context, outbox shared.OutboxRepository, aggregates ...shared.AggregateRoot) error {
	var entries []*shared.OutboxEntry
	for _, agg := range aggregates {
		for _, event := range agg.GetDomainEvents() {
			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("serialize %s: %w", event.EventType(), err)
			}
			entries = append(entries, shared.NewOutboxEntry(event, payload))
		}
	}
	if len(entries) == 0 {
		return nil
	}
	if err := outbox.Save(ctx, entries...); err != nil {
		return fmt.Errorf("save outbox entries: %w", err)
	}
	for _, agg := range aggregates {
		agg.ClearDomainEvents()
	}
	return nil
}
