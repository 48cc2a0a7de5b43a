package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_OneJobAtATime(t *testing.T) {
	seq := NewSequencer("0xsigner", nil, 0)
	defer seq.Close()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := seq.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestSequencer_ReturnsJobError(t *testing.T) {
	seq := NewSequencer("0xsigner", nil, 0)
	defer seq.Close()
	boom := errors.New("boom")
	assert.ErrorIs(t, seq.Do(context.Background(), func(context.Context) error { return boom }), boom)
}

func TestSequencer_Closed(t *testing.T) {
	seq := NewSequencer("0xsigner", nil, 0)
	seq.Close()
	err := seq.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrSequencerClosed)
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.acquired++
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func TestSerializedClient_HoldsSignerLock(t *testing.T) {
	l := &fakeLock{held: map[string]bool{}}
	mem := NewMemoryClient()
	c := NewSerializedClient(mem, l)
	defer c.Close()

	_, err := c.RegisterIfAbsent(context.Background(), "P-1", "b", "m", "loc")
	require.NoError(t, err)
	_, err = c.RecordStatus(context.Background(), "P-1", Collected, "loc", "")
	require.NoError(t, err)

	// reads skip the queue and the lock
	_, err = c.ReadHistory(context.Background(), "P-1")
	require.NoError(t, err)

	assert.Equal(t, 2, l.acquired)
	assert.Empty(t, l.held)
}

func TestSerializedClient_DisabledSkipsQueue(t *testing.T) {
	c := NewSerializedClient(NoopClient{}, nil)
	c.Close()
	_, err := c.RecordStatus(context.Background(), "P-1", Collected, "", "")
	assert.ErrorIs(t, err, ErrLedgerDisabled)
}
