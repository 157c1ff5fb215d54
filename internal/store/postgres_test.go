package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

func TestCreateTaskInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "tasks")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawler.TaskRecord{
		ID:              "uuid-1",
		Keyword:         "consumer prices",
		Engine:          crawler.EngineBing,
		Status:          crawler.TaskStatusCompleted,
		ResultsJSON:     `{"results":[]}`,
		ExtractedText:   "main text",
		FirstPageHTML:   "<html></html>",
		MetaDescription: "desc",
		MetaKeywords:    "k1, k2",
		MetaAuthor:      "author",
		MetaDate:        "2026-08-01",
		CreatedAt:       now,
	}

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(
			rec.ID,
			rec.Keyword,
			string(rec.Engine),
			string(rec.Status),
			rec.ResultsJSON,
			rec.ExtractedText,
			rec.FirstPageHTML,
			rec.MetaDescription,
			rec.MetaKeywords,
			rec.MetaAuthor,
			rec.MetaDate,
			rec.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateTask(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "tasks")
	require.NoError(t, err)

	err = store.CreateTask(context.Background(), crawler.TaskRecord{})
	assert.ErrorContains(t, err, "record id is required")
}

func TestGetTaskReturnsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "tasks")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "keyword", "engine", "status", "results_json", "extracted_text",
		"first_page_html", "meta_description", "meta_keywords", "meta_author",
		"meta_date", "created_at",
	}).AddRow(
		"uuid-1", "consumer prices", "bing", "completed", `{"results":[]}`,
		"text", "<html></html>", "desc", "k1", "author", "2026-08-01", now,
	)

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("uuid-1").
		WillReturnRows(rows)

	rec, err := store.GetTask(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, crawler.EngineBing, rec.Engine)
	assert.Equal(t, crawler.TaskStatusCompleted, rec.Status)
	assert.Equal(t, now, rec.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "tasks")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListTasksScansSummaries(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "tasks")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "keyword", "engine", "status", "created_at", "left", "left",
	}).
		AddRow("uuid-2", "rent index", "google", "completed", now, `{"results":[]}`, "text b").
		AddRow("uuid-1", "consumer prices", "bing", "failed", now.Add(-time.Hour), "", "")

	mock.ExpectQuery("SELECT (.+) FROM tasks ORDER BY created_at DESC").
		WillReturnRows(rows)

	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "uuid-2", tasks[0].ID)
	assert.Equal(t, crawler.TaskStatusFailed, tasks[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "tasks; drop table tasks")
	assert.ErrorContains(t, err, "invalid table name")
}
