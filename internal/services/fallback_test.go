package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstMatchStopsAtFirstHit(t *testing.T) {
	var calls []string
	strategy := func(name string, ok bool) func(int) (string, bool) {
		return func(int) (string, bool) {
			calls = append(calls, name)
			return name, ok
		}
	}

	out, ok := firstMatch(0, strategy("a", false), strategy("b", true), strategy("c", true))
	assert.True(t, ok)
	assert.Equal(t, "b", out)
	assert.Equal(t, []string{"a", "b"}, calls)

	_, ok = firstMatch(0, strategy("x", false))
	assert.False(t, ok)
}

func TestFirstSuccess(t *testing.T) {
	var failed []string
	attempts := []attempt[int]{
		{name: "one", run: func(context.Context) (int, error) { return 0, errors.New("boom") }},
		{name: "two", run: func(context.Context) (int, error) { return 42, nil }},
		{name: "three", run: func(context.Context) (int, error) { t.Fatal("not reached"); return 0, nil }},
	}

	got, tried, err := firstSuccess(context.Background(), time.Millisecond, attempts, func(name string, _ error) {
		failed = append(failed, name)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, tried)
	assert.Equal(t, []string{"one"}, failed)
}

func TestFirstSuccessReturnsLastError(t *testing.T) {
	last := errors.New("last")
	attempts := []attempt[int]{
		{name: "one", run: func(context.Context) (int, error) { return 0, errors.New("first") }},
		{name: "two", run: func(context.Context) (int, error) { return 0, last }},
	}

	_, tried, err := firstSuccess(context.Background(), 0, attempts, nil)
	assert.Equal(t, 2, tried)
	assert.ErrorIs(t, err, last)
}

func TestFirstSuccessHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := []attempt[int]{
		{name: "one", run: func(context.Context) (int, error) { cancel(); return 0, errors.New("first") }},
		{name: "two", run: func(context.Context) (int, error) { t.Fatal("not reached"); return 0, nil }},
	}

	_, tried, err := firstSuccess(ctx, time.Hour, attempts, nil)
	assert.Equal(t, 1, tried)
	assert.Error(t, err)
}

func TestFirstSuccessBackoffIsFlat(t *testing.T) {
	const backoff = 50 * time.Millisecond
	var starts []time.Time
	fail := func(context.Context) (int, error) {
		starts = append(starts, time.Now())
		return 0, errors.New("unavailable")
	}
	attempts := []attempt[int]{{name: "one", run: fail}, {name: "two", run: fail}, {name: "three", run: fail}}

	_, tried, err := firstSuccess(context.Background(), backoff, attempts, nil)
	require.Error(t, err)
	assert.Equal(t, 3, tried)
	require.Len(t, starts, 3)

	first := starts[1].Sub(starts[0])
	second := starts[2].Sub(starts[1])
	assert.GreaterOrEqual(t, first, backoff)
	assert.GreaterOrEqual(t, second, backoff)
	assert.Less(t, second, 2*backoff, "second wait grew to %s", second)
	assert.InDelta(t, float64(first), float64(second), float64(backoff))
}
