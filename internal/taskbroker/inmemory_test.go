package taskbroker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/taskbroker"
)

func TestInMemoryBroker_DeliversEnqueuedPayload(t *testing.T) {
	broker := taskbroker.NewInMemoryBroker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Value

	done := make(chan struct{})

	go func() {
		_ = broker.Consume(ctx, taskbroker.TaskAddRequest, func(_ context.Context, payload []byte) error {
			received.Store(string(payload))
			close(done)
			return nil
		})
	}()

	require.NoError(t, broker.Enqueue(context.Background(), taskbroker.TaskAddRequest, "task-1", []byte("payload")))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}

	require.Equal(t, "payload", received.Load())
}

func TestInMemoryBroker_RetriesFailedHandler(t *testing.T) {
	broker := taskbroker.NewInMemoryBroker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32

	done := make(chan struct{})

	go func() {
		_ = broker.Consume(ctx, taskbroker.TaskAddRequest, func(_ context.Context, _ []byte) error {
			n := atomic.AddInt32(&attempts, 1)
			if n < 2 {
				return errFirstAttempt
			}

			close(done)

			return nil
		})
	}()

	require.NoError(t, broker.Enqueue(context.Background(), taskbroker.TaskAddRequest, "task-1", []byte("payload")))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not succeed after retry")
	}

	require.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
}

var errFirstAttempt = &fakeError{"first attempt fails"}

type fakeError struct{ msg string }

func (e *fakeError) Error() string { return e.msg }
