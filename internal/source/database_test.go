package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gamecal/internal/log"
)

func ptr[T any](v T) *T { return &v }

func TestEventRowRecord(t *testing.T) {
	start := time.Date(2024, 8, 21, 10, 0, 0, 0, time.UTC)
	row := eventRow{
		ID:            "42",
		Title:         "Gamescom Opening Night Live",
		Start:         start,
		End:           ptr(start.Add(2 * time.Hour)),
		CategoryID:    ptr("3"),
		CategoryName:  ptr("Showcases"),
		CategoryColor: ptr("#ff0000"),
		Text:          ptr("Live show"),
	}

	rec := row.record()
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "Gamescom Opening Night Live", rec.Name)
	assert.Equal(t, "3", rec.Category)
	assert.Equal(t, "Live show", rec.Description)
	assert.Nil(t, rec.Show)
	assert.Equal(t, 2*time.Hour, rec.End.Sub(rec.Start))

	cat, ok := row.category()
	assert.True(t, ok)
	assert.Equal(t, "Showcases", cat.Label)
}

func TestEventRowWithoutJoins(t *testing.T) {
	rec := eventRow{ID: "1", Title: "Bare"}.record()
	assert.Empty(t, rec.Category)
	assert.True(t, rec.End.IsZero())

	_, ok := eventRow{}.category()
	assert.False(t, ok)
}

func TestOpenDatabaseWithoutDSN(t *testing.T) {
	_, err := OpenDatabase(context.Background(), "", log.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := embedMigrations.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}
