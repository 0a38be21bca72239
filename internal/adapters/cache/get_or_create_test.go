package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Signals every time a caller has to wait for another caller's entry
type signallingCache[T any] struct {
	*basicCache[T]
	waiting chan struct{}
}

func (c *signallingCache[T]) wait() {
	select {
	case c.waiting <- struct{}{}:
	default:
	}
	time.Sleep(time.Millisecond)
}

func newSignallingCache[T any]() *signallingCache[T] {
	return &signallingCache[T]{
		basicCache: NewBasicCache[T](),
		waiting:    make(chan struct{}, 1),
	}
}

func TestGetOrCreate(t *testing.T) {
	t.Parallel()

	caches := func() map[string]Cache[string] {
		return map[string]Cache[string]{
			"BasicCache": NewBasicCache[string](),
			"TTLCache":   NewTTLCache[string](1 * time.Minute),
		}
	}

	t.Run("miss then hit", func(t *testing.T) {
		t.Parallel()

		for name, c := range caches() {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				calls := 0
				create := func() (string, error) {
					calls++
					return "P02730", nil
				}

				data, created, err := GetOrCreate(t.Context(), c, "B3AT_HUMAN", create)
				require.NoError(t, err)
				require.True(t, created)
				require.Equal(t, "P02730", data)

				data, created, err = GetOrCreate(t.Context(), c, "B3AT_HUMAN", create)
				require.NoError(t, err)
				require.False(t, created)
				require.Equal(t, "P02730", data)

				require.Equal(t, 1, calls)
			})
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		t.Parallel()

		for name, c := range caches() {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				_, _, err := GetOrCreate(t.Context(), c, "B3AT_HUMAN", func() (string, error) {
					return "", fmt.Errorf("upstream error")
				})
				require.Error(t, err)

				// The claim was released, so a new entry can be created
				data, created, err := GetOrCreate(t.Context(), c, "B3AT_HUMAN", func() (string, error) {
					return "P02730", nil
				})
				require.NoError(t, err)
				require.True(t, created)
				require.Equal(t, "P02730", data)
			})
		}
	})

	t.Run("different keys are independent", func(t *testing.T) {
		t.Parallel()

		c := NewBasicCache[string]()
		a, _, err := GetOrCreate(t.Context(), c, "A", func() (string, error) { return "P11111", nil })
		require.NoError(t, err)
		b, _, err := GetOrCreate(t.Context(), c, "B", func() (string, error) { return "P22222", nil })
		require.NoError(t, err)

		require.Equal(t, "P11111", a)
		require.Equal(t, "P22222", b)
	})

	t.Run("waiting caller retries after the claimer fails", func(t *testing.T) {
		t.Parallel()

		c := newSignallingCache[string]()
		claimed := make(chan struct{})
		release := make(chan struct{})
		firstDone := make(chan error)

		go func() {
			_, _, err := GetOrCreate(t.Context(), Cache[string](c), "B3AT_HUMAN", func() (string, error) {
				close(claimed)
				<-release
				return "", fmt.Errorf("upstream error")
			})
			firstDone <- err
		}()

		<-claimed

		type secondResult struct {
			data    string
			created bool
			err     error
		}
		secondDone := make(chan secondResult)
		go func() {
			data, created, err := GetOrCreate(t.Context(), Cache[string](c), "B3AT_HUMAN", func() (string, error) {
				return "P02730", nil
			})
			secondDone <- secondResult{data: data, created: created, err: err}
		}()

		// Second caller is waiting on the claimed entry
		<-c.waiting
		close(release)

		require.Error(t, <-firstDone)

		second := <-secondDone
		require.NoError(t, second.err)
		require.True(t, second.created)
		require.Equal(t, "P02730", second.data)
	})

	t.Run("concurrent requests are de-duplicated", func(t *testing.T) {
		t.Parallel()

		c := NewTTLCache[string](1 * time.Minute)

		var calls atomic.Int32
		create := func() (string, error) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return "P02730", nil
		}

		var wg sync.WaitGroup
		results := make([]string, 10)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				data, _, err := GetOrCreate(t.Context(), c, "B3AT_HUMAN", create)
				if err == nil {
					results[i] = data
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
		for _, result := range results {
			require.Equal(t, "P02730", result)
		}
	})
}
