package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/course-ingest/internal/course"
)

func sample(title string) course.Course {
	return course.Course{
		Title:       title,
		Category:    "미술",
		Target:      "성인",
		Status:      course.StatusOpen,
		Institution: "마포구립서강도서관",
		Region:      "마포구",
		Price:       "무료",
		Capacity:    12,
		ImageURL:    "/images/course/art.jpg",
		RawData:     map[string]any{course.RawKeySource: "mapo"},
	}
}

func argsOf(c course.Course) []any {
	return []any{
		c.Title, c.Category, c.Target, string(c.Status), c.Institution, c.Region, c.Place,
		c.CourseDate, c.ApplyDate, c.Time, c.Price, c.Capacity, c.Contact, c.Link,
		c.ImageURL, []byte(`{"source":"mapo"}`),
	}
}

func TestUpsertWritesOneStatement(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	a, b := sample("수채화"), sample("요가")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses (title, category")).
		WithArgs(append(argsOf(a), argsOf(b)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := store.Upsert(context.Background(), []course.Course{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertQueryShape(t *testing.T) {
	t.Parallel()

	store := &CourseStore{table: "courses"}
	query, args, err := store.upsertQuery([]course.Course{sample("a"), sample("b")})
	require.NoError(t, err)
	assert.Len(t, args, 32)
	assert.Contains(t, query, "($17,$18,")
	assert.Contains(t, query, "ON CONFLICT (institution, title) DO UPDATE SET category = EXCLUDED.category")
	assert.NotContains(t, query, "title = EXCLUDED.title")
	assert.True(t, strings.HasSuffix(query, "updated_at = now()"))
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "courses")
	require.NoError(t, err)

	n, err := store.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRunsInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "courses")
	require.NoError(t, err)

	c := sample("서예")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE institution = ANY($1)")).
		WithArgs([]string{"마포구립서강도서관"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec("INSERT INTO courses").
		WithArgs(argsOf(c)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := store.Replace(context.Background(), []string{"마포구립서강도서관"}, []course.Course{c})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "courses")
	require.NoError(t, err)

	boom := errors.New("deadlock detected")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE institution = ANY($1)")).
		WithArgs([]string{"x"}).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err = store.Replace(context.Background(), []string{"x"}, []course.Course{sample("a")})
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "delete institutions")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatedSinceScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "courses")
	require.NoError(t, err)

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created := since.Add(time.Hour)
	cols := append([]string{"id"}, columns...)
	cols = append(cols, "created_at", "updated_at")
	rows := pgxmock.NewRows(cols).AddRow(
		"42", "요가", "운동", "성인", "접수중", "강남구청", "강남구", "3층",
		"2025.04.01 ~ 2025.04.30", "", "10:00 ~ 11:00", "무료", 20, "02-000", "https://x",
		"/images/course/exercise.jpg", []byte(`{"source":"gov","d_day":"D-3"}`), created, created,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id::text, title")).WithArgs(since).WillReturnRows(rows)

	got, err := store.CreatedSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ID)
	assert.Equal(t, course.StatusOpen, got[0].Status)
	assert.Equal(t, 20, got[0].Capacity)
	assert.Equal(t, "D-3", got[0].DDay())
	assert.Equal(t, created, got[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistinctLocations(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "courses")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT DISTINCT region, institution").
		WillReturnRows(pgxmock.NewRows([]string{"region", "institution"}).
			AddRow("강남구", "강남구청").
			AddRow("마포구", "마포구립서강도서관"))

	got, err := store.DistinctLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []course.Location{
		{Region: "강남구", Institution: "강남구청"},
		{Region: "마포구", Institution: "마포구립서강도서관"},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "courses; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "courses")
	require.Error(t, err)
}
