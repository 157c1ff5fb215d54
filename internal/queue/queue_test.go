package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

func TestMemoryQueueEmptyPop(t *testing.T) {
	q := NewMemory()

	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryQueueFIFOAtMostOnce(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	first := crawler.CrawlJob{ID: "a", Keyword: "one", Engine: crawler.EngineBing}
	second := crawler.CrawlJob{ID: "b", Keyword: "two", Engine: crawler.EngineGoogle}
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first, *got)

	got, err = q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second, *got)

	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryQueueConcurrentConsumers(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	const total = 200
	for i := 0; i < total; i++ {
		require.NoError(t, q.Push(ctx, crawler.CrawlJob{ID: string(rune('A' + i%26))}))
	}

	var (
		mu      sync.Mutex
		popped  int
		wg      sync.WaitGroup
		workers = 8
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Pop(ctx)
				assert.NoError(t, err)
				if job == nil || err != nil {
					return
				}
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, total, popped)
}
