package embed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}
	loop.Post(func() { close(done) })
	<-done

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	cancel()
	<-loop.Done()
	assert.False(t, loop.Post(func() {}))
}

func TestLoopAfterPostsBackOntoLoop(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	loop.After(5*time.Millisecond, wg.Done)
	wg.Wait()

	fired := false
	timer := loop.After(time.Hour, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, fired)
}
