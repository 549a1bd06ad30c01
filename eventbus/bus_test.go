package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestBus() *InMemoryBus {
	return NewInMemoryBus(30 * time.Second)
}

// countingHandler returns handler that counts calls
func countingHandler(counter *int32) HandlerFunc {
	return func(ctx context.Context, msg Message) (any, error) {
		atomic.AddInt32(counter, 1)
		return "ok", nil
	}
}

// failingHandler returns handler that always fails
func failingHandler(errMsg string) HandlerFunc {
	return func(ctx context.Context, msg Message) (any, error) {
		return nil, errors.New(errMsg)
	}
}

// abortingMiddleware aborts processing by returning nil
type abortingMiddleware struct{}

func (m *abortingMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	return nil, nil // Abort
}

func (m *abortingMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	return result, err
}

// =============================================================================
// PUBLISH TESTS
// =============================================================================

func TestPublish_FanOut(t *testing.T) {
	bus := newTestBus()
	var countA, countB int32

	bus.Subscribe("CommandProcessed", countingHandler(&countA))
	bus.Subscribe("CommandProcessed", countingHandler(&countB))

	err := bus.Publish(context.Background(), &CommandProcessed{
		UserID: "alice", Intent: "inbox.list", Status: "ok",
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&countA))
	assert.Equal(t, int32(1), atomic.LoadInt32(&countB))
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := newTestBus()

	// Publishing with no subscribers is not an error.
	err := bus.Publish(context.Background(), &ActionDenied{UserID: "alice", Reason: "policy"})
	assert.NoError(t, err)
}

func TestPublish_SubscriberErrorDoesNotStopOthers(t *testing.T) {
	bus := newTestBus()
	var count int32

	bus.Subscribe("ActionExecuted", failingHandler("boom"))
	bus.Subscribe("ActionExecuted", countingHandler(&count))

	err := bus.Publish(context.Background(), &ActionExecuted{UserID: "alice", Status: "executed"})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()
	var count int32

	unsubscribe := bus.Subscribe("CommandReceived", countingHandler(&count))

	require.NoError(t, bus.Publish(context.Background(), &CommandReceived{UserID: "alice"}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &CommandReceived{UserID: "alice"}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count), "unsubscribed handler should not fire")
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_SingleHandler(t *testing.T) {
	bus := newTestBus()
	var count int32

	require.NoError(t, bus.RegisterHandler("TaskDelegated", countingHandler(&count)))

	err := bus.Send(context.Background(), &TaskDelegated{UserID: "alice", TaskID: "task_1"})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestSend_NoHandlerIsNotError(t *testing.T) {
	bus := newTestBus()

	err := bus.Send(context.Background(), &TaskDelegated{UserID: "alice"})
	assert.NoError(t, err)
}

func TestRegisterHandler_Duplicate(t *testing.T) {
	bus := newTestBus()
	var count int32

	require.NoError(t, bus.RegisterHandler("TaskDelegated", countingHandler(&count)))

	err := bus.RegisterHandler("TaskDelegated", countingHandler(&count))

	require.Error(t, err)
	var dup *HandlerAlreadyRegisteredError
	assert.ErrorAs(t, err, &dup)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestQuerySync(t *testing.T) {
	bus := newTestBus()

	require.NoError(t, bus.RegisterHandler("GetPendingCount", func(ctx context.Context, msg Message) (any, error) {
		return 3, nil
	}))

	result, err := bus.QuerySync(context.Background(), &GetPendingCount{})

	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestQuerySync_NoHandler(t *testing.T) {
	bus := newTestBus()

	_, err := bus.QuerySync(context.Background(), &GetPendingCount{})

	require.Error(t, err)
	var noHandler *NoHandlerError
	assert.ErrorAs(t, err, &noHandler)
}

func TestQuerySync_Timeout(t *testing.T) {
	bus := NewInMemoryBus(50 * time.Millisecond)

	require.NoError(t, bus.RegisterHandler("GetPendingCount", func(ctx context.Context, msg Message) (any, error) {
		select {
		case <-time.After(time.Second):
			return 0, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}))

	_, err := bus.QuerySync(context.Background(), &GetPendingCount{})

	require.Error(t, err)
	var timeout *QueryTimeoutError
	assert.ErrorAs(t, err, &timeout)
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestMiddleware_Abort(t *testing.T) {
	bus := newTestBus()
	var count int32

	bus.Subscribe("CommandProcessed", countingHandler(&count))
	bus.AddMiddleware(&abortingMiddleware{})

	require.NoError(t, bus.Publish(context.Background(), &CommandProcessed{UserID: "alice"}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&count), "aborted event should not reach subscribers")
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	bus := newTestBus()
	cb := NewCircuitBreakerMiddleware(2, time.Minute, nil)
	bus.AddMiddleware(cb)

	require.NoError(t, bus.RegisterHandler("TaskDelegated", failingHandler("downstream down")))

	// Two failures trip the breaker.
	_ = bus.Send(context.Background(), &TaskDelegated{UserID: "alice"})
	_ = bus.Send(context.Background(), &TaskDelegated{UserID: "alice"})

	states := cb.GetStates()
	assert.Equal(t, "open", states["TaskDelegated"])

	// While open, the breaker blocks delivery entirely.
	var count int32
	bus.Clear()
	bus.AddMiddleware(cb)
	require.NoError(t, bus.RegisterHandler("TaskDelegated", countingHandler(&count)))
	_ = bus.Send(context.Background(), &TaskDelegated{UserID: "alice"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestCircuitBreaker_ExcludedTypesBypass(t *testing.T) {
	bus := newTestBus()
	cb := NewCircuitBreakerMiddleware(1, time.Minute, []string{"CommandProcessed"})
	bus.AddMiddleware(cb)

	bus.Subscribe("CommandProcessed", failingHandler("boom"))

	_ = bus.Publish(context.Background(), &CommandProcessed{UserID: "alice"})
	_ = bus.Publish(context.Background(), &CommandProcessed{UserID: "alice"})

	states := cb.GetStates()
	assert.NotEqual(t, "open", states["CommandProcessed"])
}

// =============================================================================
// MESSAGE TYPE TESTS
// =============================================================================

func TestGetMessageType(t *testing.T) {
	tests := []struct {
		msg      Message
		expected string
	}{
		{&CommandReceived{}, "CommandReceived"},
		{&CommandProcessed{}, "CommandProcessed"},
		{&PendingActionStaged{}, "PendingActionStaged"},
		{&ActionExecuted{}, "ActionExecuted"},
		{&ActionDenied{}, "ActionDenied"},
		{&ActionCancelled{}, "ActionCancelled"},
		{&TaskDelegated{}, "TaskDelegated"},
		{&GetPendingCount{}, "GetPendingCount"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetMessageType(tt.msg))
	}
}

func TestMessageCategories(t *testing.T) {
	assert.Equal(t, "event", (&CommandProcessed{}).Category())
	assert.Equal(t, "event", (&ActionDenied{}).Category())
	assert.Equal(t, "query", (&GetPendingCount{}).Category())
}

func TestGetRegisteredTypes(t *testing.T) {
	bus := newTestBus()
	var count int32

	require.NoError(t, bus.RegisterHandler("GetPendingCount", countingHandler(&count)))
	bus.Subscribe("CommandProcessed", countingHandler(&count))

	types := bus.GetRegisteredTypes()
	assert.Contains(t, types, "GetPendingCount")
	assert.Contains(t, types, "CommandProcessed")
}
