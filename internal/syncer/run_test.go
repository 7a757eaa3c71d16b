package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

func TestRun_TriggerAndReconnect(t *testing.T) {
	f := setup(t, Config{Interval: time.Hour})
	seedRemoteCatalog(t, f.remote)

	flag := NewFlag(false)
	events := make(chan bool, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.proc.Run(ctx, flag, events) }()

	// Offline: the sale stays queued even when nudged.
	f.sale(t, "t-1")
	f.proc.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.pending(t), 2)

	// Coming online runs a full sync.
	flag.Set(true)
	events <- true
	require.Eventually(t, func() bool {
		n, err := f.store.Count(context.Background(), store.Query{Collection: domain.CollectionProducts})
		return err == nil && n == 1 && len(f.pending(t)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// A nudge drains newly queued work.
	f.sale(t, "t-2")
	f.proc.Trigger()
	require.Eventually(t, func() bool {
		return len(f.pending(t)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_NoRemoteWaitsForCancel(t *testing.T) {
	f := setup(t, Config{})
	proc := NewProcessor(f.store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := proc.Run(ctx, Static(true), nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTrigger_NeverBlocks(t *testing.T) {
	f := setup(t, Config{})
	for i := 0; i < 10; i++ {
		f.proc.Trigger()
	}
}
