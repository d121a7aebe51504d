/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package queue

import (
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

func waitFor(cond func() bool) {
	for !cond() {
		runtime.Gosched()
	}
}

func TestFIFOSingleProducer(t *testing.T) {
	c := NewChannel(4)
	for i := 0; i < 4; i++ {
		require.Nil(t, c.Enqueue(Request{Message: fmt.Sprint(i)}))
	}
	assert.Equal(t, 4, c.Len())
	for i := 0; i < 4; i++ {
		r, err := c.Dequeue()
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprint(i), r.Message)
	}
	assert.True(t, c.IsEmpty())
}

func TestMultiProducerNoLossNoDuplication(t *testing.T) {
	const producers = 8
	const perProducer = 500
	c := NewChannel(16)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.Nil(t, c.Enqueue(Request{Message: fmt.Sprintf("%d:%d", p, i)}))
			}
		}(p)
	}

	seen := make(map[string]int)
	next := make([]int, producers)
	for n := 0; n < producers*perProducer; n++ {
		r, err := c.Dequeue()
		require.Nil(t, err)
		seen[r.Message]++

		var p, i int
		_, err = fmt.Sscanf(r.Message, "%d:%d", &p, &i)
		require.Nil(t, err)
		assert.Equal(t, next[p], i, "producer %d out of order", p)
		next[p] = i + 1
	}
	wg.Wait()

	assert.Len(t, seen, producers*perProducer)
	for msg, n := range seen {
		assert.Equal(t, 1, n, msg)
	}
	assert.True(t, c.IsEmpty())
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	c := NewChannel(1)
	require.Nil(t, c.Enqueue(Request{Message: "first"}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Nil(t, c.Enqueue(Request{Message: "second"}))
	}()

	waitFor(func() bool { p, _ := c.waiters(); return p == 1 })
	select {
	case <-done:
		t.Fatal("enqueue returned while the channel was full")
	default:
	}

	r, err := c.Dequeue()
	require.Nil(t, err)
	assert.Equal(t, "first", r.Message)
	<-done

	r, err = c.Dequeue()
	require.Nil(t, err)
	assert.Equal(t, "second", r.Message)
}

func TestDequeueBlocksWhenEmpty(t *testing.T) {
	c := NewChannel(1)

	got := make(chan Request)
	go func() {
		r, err := c.Dequeue()
		assert.Nil(t, err)
		got <- r
	}()

	waitFor(func() bool { _, w := c.waiters(); return w == 1 })
	select {
	case <-got:
		t.Fatal("dequeue returned from an empty channel")
	default:
	}

	require.Nil(t, c.Enqueue(Request{Message: "hello"}))
	assert.Equal(t, "hello", (<-got).Message)
}

func TestCloseWakesWaiters(t *testing.T) {
	c := NewChannel(1)

	consumerErr := make(chan error)
	go func() {
		_, err := c.Dequeue()
		consumerErr <- err
	}()
	waitFor(func() bool { _, w := c.waiters(); return w == 1 })
	c.Close()
	assert.True(t, errdefs.IsClosed(<-consumerErr))

	c2 := NewChannel(1)
	require.Nil(t, c2.Enqueue(Request{Message: "queued"}))
	producerErr := make(chan error)
	go func() {
		producerErr <- c2.Enqueue(Request{Message: "late"})
	}()
	waitFor(func() bool { p, _ := c2.waiters(); return p == 1 })
	c2.Close()
	assert.True(t, errdefs.IsClosed(<-producerErr))

	// queued items survive close
	r, err := c2.Dequeue()
	require.Nil(t, err)
	assert.Equal(t, "queued", r.Message)
	_, err = c2.Dequeue()
	assert.True(t, errdefs.IsClosed(err))

	assert.True(t, errdefs.IsClosed(c2.Enqueue(Request{})))
	c2.Close()
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewChannel(0).Cap())
	assert.Equal(t, 7, NewChannel(7).Cap())
}

func TestDepthObserver(t *testing.T) {
	var depths []int
	c := NewChannel(4, WithDepthObserver(func(depth int) {
		depths = append(depths, depth)
	}))
	for i := 0; i < 3; i++ {
		require.Nil(t, c.Enqueue(Request{Message: fmt.Sprint(i)}))
	}
	_, err := c.Dequeue()
	require.Nil(t, err)
	require.Nil(t, c.Enqueue(Request{}))
	assert.Equal(t, []int{1, 2, 3, 2, 3}, depths)

	c.Close()
	require.NotNil(t, c.Enqueue(Request{}))
	assert.Len(t, depths, 5)
}
