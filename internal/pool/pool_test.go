package pool

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		list    []string
		workers int
		want    [][]string
	}{
		{
			name:    "even split",
			list:    []string{"a", "b", "c", "d"},
			workers: 2,
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "uneven split",
			list:    []string{"a", "b", "c", "d", "e"},
			workers: 2,
			want:    [][]string{{"a", "b"}, {"c", "d", "e"}},
		},
		{
			name:    "more workers than tickers",
			list:    []string{"a", "b"},
			workers: 4,
			want:    [][]string{{}, {"a"}, {}, {"b"}},
		},
		{
			name:    "single worker",
			list:    []string{"a", "b", "c"},
			workers: 1,
			want:    [][]string{{"a", "b", "c"}},
		},
		{
			name:    "empty list",
			list:    nil,
			workers: 3,
			want:    [][]string{{}, {}, {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.list, tt.workers)
			require.Len(t, got, tt.workers)

			var flat []string
			for i, chunk := range got {
				assert.Equal(t, tt.want[i], append([]string{}, chunk...))
				flat = append(flat, chunk...)
			}
			assert.Equal(t, tt.list, flat[:len(tt.list)])
		})
	}
}

func TestSplit_SizesDifferByAtMostOne(t *testing.T) {
	list := make([]string, 17)
	for i := range list {
		list[i] = string(rune('a' + i))
	}
	chunks := Split(list, 5)

	minSize, maxSize := len(chunks[0]), len(chunks[0])
	for _, c := range chunks {
		minSize = min(minSize, len(c))
		maxSize = max(maxSize, len(c))
	}
	assert.LessOrEqual(t, maxSize-minSize, 1)
}

func TestPool_SinkReceivesEveryBatch(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		return []string{ticker + "-1", ticker + "-2"}, nil
	}

	var mu sync.Mutex
	got := make(map[string][]string)
	sink := func(_ context.Context, ticker string, records []string) error {
		mu.Lock()
		defer mu.Unlock()
		got[ticker] = records
		return nil
	}

	p := New(parse, []string{"aapl", "msft", "ibm"}, 2, sink)
	p.Start(context.Background())
	require.NoError(t, p.Wait())

	assert.Len(t, got, 3)
	assert.Equal(t, []string{"aapl-1", "aapl-2"}, got["aapl"])
}

func TestPool_NoSinkAccumulatesResults(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		return []string{ticker}, nil
	}

	p := New(parse, []string{"a", "b", "c", "d", "e"}, 3, nil)
	p.Start(context.Background())
	require.NoError(t, p.Wait())

	results := p.Results()
	assert.Len(t, results, 5)

	seen := make(map[string]bool)
	for _, batch := range results {
		require.Len(t, batch, 1)
		seen[batch[0]] = true
	}
	assert.Len(t, seen, 5)
}

func TestPool_WorkerFailureDoesNotStopSiblings(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		if ticker == "bad" {
			return nil, eris.New("fetch failed")
		}
		return []string{ticker}, nil
	}

	var mu sync.Mutex
	var delivered []string
	sink := func(_ context.Context, ticker string, _ []string) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, ticker)
		return nil
	}

	// Two workers: chunk one is {bad, a}, chunk two is {b, c}. The failing
	// ticker kills only its own worker, so "a" is lost but the second chunk
	// completes.
	p := New(parse, []string{"bad", "a", "b", "c"}, 2, sink)
	p.Start(context.Background())

	err := p.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch failed")

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, delivered, "a")
	assert.Contains(t, delivered, "b")
	assert.Contains(t, delivered, "c")
}

func TestPool_SinkErrorSurfacedByWait(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		return []string{ticker}, nil
	}
	sink := func(_ context.Context, _ string, _ []string) error {
		return eris.New("persist failed")
	}

	p := New(parse, []string{"a"}, 1, sink)
	p.Start(context.Background())

	err := p.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist failed")
}

func TestPool_ResultsDetachedFromPoolState(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		return []string{ticker}, nil
	}

	p := New(parse, []string{"a", "b"}, 1, nil)
	p.Start(context.Background())
	require.NoError(t, p.Wait())

	first := p.Results()
	require.Len(t, first, 2)
	first[0] = []string{"clobbered"}

	again := p.Results()
	require.Len(t, again, 2)
	assert.NotEqual(t, []string{"clobbered"}, again[0])
}

func TestPool_ExcessWorkersCompleteImmediately(t *testing.T) {
	parse := func(_ context.Context, ticker string) ([]string, error) {
		return []string{ticker}, nil
	}

	p := New(parse, []string{"only"}, 8, nil)
	p.Start(context.Background())
	require.NoError(t, p.Wait())
	assert.Len(t, p.Results(), 1)
}
