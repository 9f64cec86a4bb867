package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/pkg/sequence"
)

func TestConcurrentRunsEveryElement(t *testing.T) {
	var sum atomic.Int64
	err := Concurrent(context.Background(), sequence.From([]int{1, 2, 3, 4}), 2, func(_ context.Context, v int) error {
		sum.Add(int64(v))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Load())
}

func TestConcurrentReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Concurrent(context.Background(), sequence.From([]int{1, 2, 3}), 0, func(_ context.Context, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestParallelMapKeepsOrder(t *testing.T) {
	out := ParallelMap(sequence.From([]int{1, 2, 3, 4, 5}), 3, func(v int) int { return v * v })
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
}
