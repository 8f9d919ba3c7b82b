package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusTypedSubscription(t *testing.T) {
	bus := NewBus()
	trustCh := bus.Subscribe(TypeTrustUpdated)
	allCh := bus.Subscribe()

	bus.Emit(TypeTrustUpdated, "provider-1", map[string]interface{}{"newScore": 4.2})
	bus.Emit(TypeBudgetReset, "budget-1", nil)

	select {
	case e := <-trustCh:
		assert.Equal(t, TypeTrustUpdated, e.Type)
		assert.Equal(t, "provider-1", e.Subject)
		assert.NotEmpty(t, e.ID)
	case <-time.After(time.Second):
		t.Fatal("typed subscriber did not receive event")
	}

	// The typed subscriber must not see the budget event.
	select {
	case e := <-trustCh:
		t.Fatalf("unexpected event %s on typed subscription", e.Type)
	default:
	}

	// The all-events subscriber sees both.
	require.Len(t, allCh, 2)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TypeBudgetReset)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Emit(TypeBudgetReset, "budget-1", nil)
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ { // well past the buffer size
			bus.Emit(TypeFeedbackReceived, "p", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.NotEmpty(t, ch)
}
