package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcaderun/roomrt/internal/dispatch"
	"github.com/arcaderun/roomrt/internal/ports"
)

func TestDispatchOrdersCommandsPerRoom(t *testing.T) {
	d := dispatch.New(nil)
	defer d.Shutdown()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
			require.NoError(t, err)
		}()
		wg.Wait() // dispatch sequentially so enqueue order is deterministic
	}

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatchParallelizesAcrossRooms(t *testing.T) {
	d := dispatch.New(nil)
	defer d.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{}, 2)

	go d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	})
	go d.Dispatch(context.Background(), "room-b", func(ctx context.Context) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	})

	<-started
	<-started // both rooms' thunks started before either finished
	close(release)
}

func TestDispatchAfterShutdownFails(t *testing.T) {
	d := dispatch.New(nil)
	d.Shutdown()

	_, err := d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestDispatchRecoversFromPanickingThunk(t *testing.T) {
	d := dispatch.New(nil)
	defer d.Shutdown()

	_, err := d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrThunkPanicked))
}

func TestShardSurvivesAPanicAndKeepsServingItsRoom(t *testing.T) {
	d := dispatch.New(nil)
	defer d.Shutdown()

	_, err := d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)

	val, err := d.Dispatch(context.Background(), "room-a", func(ctx context.Context) (any, error) {
		return "still alive", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "still alive", val)
}
