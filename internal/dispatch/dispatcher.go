// Package dispatch implements a sharded command queue: every room hashes
// to one of N single-consumer queues so commands
// against the same room are strictly ordered without binding a goroutine
// to each room.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime"
	"sync"

	"github.com/arcaderun/roomrt/internal/ports"
)

// job is a thunk paired with the channel its result is delivered on.
type job struct {
	ctx    context.Context
	thunk  func(ctx context.Context) (any, error)
	result chan<- outcome
}

type outcome struct {
	value any
	err   error
}

// Dispatcher owns N FIFO shards. Commands for the same roomId always land
// on the same shard and are drained in enqueue order; different rooms
// spread across shards and progress in parallel.
type Dispatcher struct {
	shards []chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Dispatcher with N = runtime.NumCPU() * 2 shards and
// starts one consumer goroutine per shard.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	n := runtime.NumCPU() * 2
	if n < 2 {
		n = 2
	}
	d := &Dispatcher{
		shards: make([]chan job, n),
		logger: logger.With("component", "dispatcher"),
		closed: make(chan struct{}),
	}
	for i := range d.shards {
		d.shards[i] = make(chan job, 256)
		d.wg.Add(1)
		go d.runShard(i)
	}
	return d
}

func (d *Dispatcher) shardFor(roomID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return int(h.Sum32()) % len(d.shards)
}

func (d *Dispatcher) runShard(i int) {
	defer d.wg.Done()
	for j := range d.shards[i] {
		j.result <- d.runJob(i, j)
	}
}

// runJob invokes the thunk with a recover guard so a panic inside one
// engine call resolves that call's promise with an error instead of
// killing the shard goroutine — every other room hashed to this shard
// would otherwise hang for the rest of the process's life.
func (d *Dispatcher) runJob(shard int, j job) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch: thunk panicked", "shard", shard, "panic", r)
			out = outcome{err: fmt.Errorf("%w: %v", ports.ErrThunkPanicked, r)}
		}
	}()
	val, err := j.thunk(j.ctx)
	return outcome{value: val, err: err}
}

// Dispatch enqueues thunk on the shard owned by roomID and blocks until it
// runs and returns a result, or the dispatcher shuts down first. Enqueue
// itself never blocks the caller beyond the shard's buffer — once the
// buffer is full, the caller gets ErrSystemOverloaded immediately rather
// than stalling.
func (d *Dispatcher) Dispatch(ctx context.Context, roomID string, thunk func(ctx context.Context) (any, error)) (any, error) {
	select {
	case <-d.closed:
		return nil, ports.ErrRoomShutdown
	default:
	}

	result := make(chan outcome, 1)
	j := job{ctx: ctx, thunk: thunk, result: result}

	shard := d.shards[d.shardFor(roomID)]
	select {
	case shard <- j:
	case <-d.closed:
		return nil, ports.ErrRoomShutdown
	default:
		return nil, ports.ErrSystemOverloaded
	}

	select {
	case out := <-result:
		return out.value, out.err
	case <-d.closed:
		return nil, ports.ErrRoomShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes every shard writer and drains pending work, completing
// each pending promise with ErrRoomShutdown. It is safe to call more than
// once.
func (d *Dispatcher) Shutdown() {
	d.closeOnce.Do(func() {
		close(d.closed)
		for _, s := range d.shards {
			close(s)
		}
	})
	d.wg.Wait()
}

// ErrClosed is a sentinel that Dispatch does not return: calls issued
// after Shutdown, and calls still waiting when it runs, get
// ports.ErrRoomShutdown instead.
var ErrClosed = errors.New("dispatcher: closed")
