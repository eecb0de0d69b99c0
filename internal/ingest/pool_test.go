package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryDocument(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	p := NewPool(context.Background(), 3, func(ctx context.Context, task Task) {
		mu.Lock()
		seen[task.DocumentID]++
		mu.Unlock()
	})
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, p.Submit(Task{DocumentID: id}))
	}
	require.NoError(t, p.Close(context.Background()))
	require.Len(t, seen, 5)
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
}

func TestPoolSerializesSameDocument(t *testing.T) {
	var active, maxActive, runs int32
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var lastOwner atomic.Value
	p := NewPool(context.Background(), 4, func(ctx context.Context, task Task) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		atomic.AddInt32(&runs, 1)
		lastOwner.Store(task.OwnerID)
		started <- struct{}{}
		<-release
		atomic.AddInt32(&active, -1)
	})

	require.NoError(t, p.Submit(Task{DocumentID: "doc", OwnerID: "first"}))
	<-started
	require.True(t, p.IsActive("doc"))
	// both wait behind the running task; the later one replaces the earlier
	require.NoError(t, p.Submit(Task{DocumentID: "doc", OwnerID: "second"}))
	require.NoError(t, p.Submit(Task{DocumentID: "doc", OwnerID: "third"}))
	release <- struct{}{}
	<-started
	release <- struct{}{}

	require.NoError(t, p.Close(context.Background()))
	require.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	require.Equal(t, int32(2), atomic.LoadInt32(&runs))
	require.Equal(t, "third", lastOwner.Load())
	require.False(t, p.IsActive("doc"))
}

func TestPoolClose(t *testing.T) {
	p := NewPool(context.Background(), 1, func(ctx context.Context, task Task) {})
	require.NoError(t, p.Close(context.Background()))
	require.ErrorIs(t, p.Submit(Task{DocumentID: "x"}), ErrPoolClosed)
	require.Error(t, p.Submit(Task{}))
}

func TestPoolCloseTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := NewPool(context.Background(), 1, func(ctx context.Context, task Task) { <-block })
	require.NoError(t, p.Submit(Task{DocumentID: "slow"}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}

func TestPoolRecoversPanic(t *testing.T) {
	var ran int32
	p := NewPool(context.Background(), 1, func(ctx context.Context, task Task) {
		if task.DocumentID == "bad" {
			panic("boom")
		}
		atomic.AddInt32(&ran, 1)
	})
	require.NoError(t, p.Submit(Task{DocumentID: "bad"}))
	require.NoError(t, p.Submit(Task{DocumentID: "good"}))
	require.NoError(t, p.Close(context.Background()))
	require.Equal(t, int32(1), atomic.LoadInt32(&ran))
}
