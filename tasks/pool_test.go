package tasks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/assetpipe/tasks"
)

func TestPool_RunsEveryJob(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 4, Logger: zerolog.New(zerolog.NewTestWriter(t))})

	var count atomic.Int32
	for range 100 {
		p.Execute("count", func() { count.Add(1) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, int32(100), count.Load())
	assert.Equal(t, 0, p.Pending())
	require.NoError(t, p.Close())
}

func TestPool_ExecuteDoesNotBlock(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 1, Logger: zerolog.Nop()})

	release := make(chan struct{})
	p.Execute("blocker", func() { <-release })

	done := make(chan struct{})
	go func() {
		for range 50 {
			p.Execute("queued", func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Execute blocked while the worker was busy")
	}

	assert.Equal(t, 51, p.Pending())
	close(release)
	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Pending())
}

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 1, Logger: zerolog.Nop()})

	var mu sync.Mutex
	var order []int
	for i := range 10 {
		p.Execute("ordered", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	require.NoError(t, p.Close())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 1, Logger: zerolog.New(zerolog.NewTestWriter(t))})

	var ran atomic.Bool
	p.Execute("boom", func() { panic("importer exploded") })
	p.Execute("after", func() { ran.Store(true) })

	require.NoError(t, p.Close())
	assert.True(t, ran.Load())
}

func TestPool_DropsAfterClose(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 2, Logger: zerolog.Nop()})
	require.NoError(t, p.Close())

	var ran atomic.Bool
	p.Execute("late", func() { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestPool_WaitRespectsContext(t *testing.T) {
	p := tasks.NewPool(tasks.PoolParams{Workers: 1, Logger: zerolog.Nop()})
	release := make(chan struct{})
	p.Execute("blocker", func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close())
}
