package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/queue"
)

type countingIDs struct {
	n   int
	err error
}

func (g *countingIDs) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

func TestNewRejectsBadEntries(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory()

	_, err := New(q, &countingIDs{}, zap.NewNop(), []Entry{
		{Schedule: "* * * * *", Keyword: "", Engine: crawler.EngineBing},
	})
	assert.ErrorContains(t, err, "keyword is required")

	_, err = New(q, &countingIDs{}, zap.NewNop(), []Entry{
		{Schedule: "* * * * *", Keyword: "x", Engine: crawler.Engine("lycos")},
	})
	assert.ErrorContains(t, err, "unknown engine")

	_, err = New(q, &countingIDs{}, zap.NewNop(), []Entry{
		{Schedule: "not-cron", Keyword: "x", Engine: crawler.EngineBing},
	})
	assert.Error(t, err)
}

func TestFireEnqueuesJob(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory()
	s, err := New(q, &countingIDs{}, zap.NewNop(), nil)
	require.NoError(t, err)

	entry := Entry{
		Keyword:   "consumer prices",
		Engine:    crawler.EngineGoogle,
		Selectors: map[string]string{"headline": "h1"},
	}
	s.fire(entry)
	s.fire(entry)

	ctx := context.Background()
	first, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "id-1", first.ID)
	assert.Equal(t, "consumer prices", first.Keyword)
	assert.Equal(t, crawler.EngineGoogle, first.Engine)
	assert.Equal(t, map[string]string{"headline": "h1"}, first.Selectors)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "id-2", second.ID)
}

func TestFireSkipsWhenIDMintFails(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory()
	s, err := New(q, &countingIDs{err: errors.New("entropy exhausted")}, zap.NewNop(), nil)
	require.NoError(t, err)

	s.fire(Entry{Keyword: "x", Engine: crawler.EngineBing})

	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}
