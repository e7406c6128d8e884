package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	ev := &stubEvent{BaseDomainEvent: NewBaseDomainEvent("PaymentCompleted", "PaymentRecord", uuid.New())}
	entry := NewOutboxEntry(ev, []byte(`{}`))

	assert.Equal(t, ev.EventID(), entry.EventID)
	assert.Equal(t, "PaymentCompleted", entry.EventType)
	assert.Equal(t, "PaymentRecord", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	tests := []struct {
		status  OutboxStatus
		wantErr bool
	}{
		{OutboxStatusPending, false},
		{OutboxStatusFailed, false},
		{OutboxStatusProcessing, true},
		{OutboxStatusSent, true},
		{OutboxStatusDead, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			e := &OutboxEntry{Status: tt.status}
			err := e.MarkProcessing()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, OutboxStatusProcessing, e.Status)
		})
	}
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules retry with backoff", func(t *testing.T) {
		e := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 3}
		e.MarkFailed("broker down")

		assert.Equal(t, OutboxStatusFailed, e.Status)
		assert.Equal(t, 1, e.RetryCount)
		assert.Equal(t, "broker down", e.LastError)
		require.NotNil(t, e.NextRetryAt)
		assert.True(t, e.NextRetryAt.After(time.Now()))
		assert.True(t, e.CanRetry())
	})

	t.Run("moves to dead letter after max retries", func(t *testing.T) {
		e := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 2, RetryCount: 1}
		e.MarkFailed("still down")

		assert.True(t, e.IsDead())
		assert.False(t, e.CanRetry())
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	e := &OutboxEntry{Status: OutboxStatusProcessing}
	e.MarkSent()
	assert.Equal(t, OutboxStatusSent, e.Status)
	assert.NotNil(t, e.ProcessedAt)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(1))
	assert.Equal(t, 8*time.Second, retryDelay(4))
	assert.Equal(t, 5*time.Minute, retryDelay(20))
	assert.Equal(t, 5*time.Minute, retryDelay(200))
}
