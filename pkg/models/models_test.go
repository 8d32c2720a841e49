package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notefold/notefold/pkg/models"
)

func TestValidateTitle(t *testing.T) {
	t.Run("Trimmed", func(t *testing.T) {
		got, err := models.ValidateTitle("  Groceries  ")
		require.NoError(t, err)
		assert.Equal(t, "Groceries", got)
	})

	t.Run("BlankRejected", func(t *testing.T) {
		for _, title := range []string{"", "   ", "\t\n "} {
			_, err := models.ValidateTitle(title)
			assert.Error(t, err, "Title %q must be rejected", title)
		}
	})
}

func TestFolderColor(t *testing.T) {
	want := []models.FolderColor{
		"red", "orange", "yellow", "green",
		"blue", "purple", "pink", "gray",
	}
	assert.Equal(t, want, models.FolderColors, "Palette tokens are fixed")
	for _, c := range models.FolderColors {
		assert.True(t, c.Valid(), "Palette color %s must be valid", c)
	}
	assert.False(t, models.FolderColor("mauve").Valid())
	assert.False(t, models.FolderColor("slate").Valid())
	assert.False(t, models.FolderColor("").Valid())
	assert.Contains(t, models.FolderColors, models.DefaultFolderColor)
}

func TestTypedIDs(t *testing.T) {
	t.Run("ParseRoundTrip", func(t *testing.T) {
		id := models.NewFolderID()
		parsed, err := models.ParseFolderID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)

		_, err = models.ParseFolderID("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("Zero", func(t *testing.T) {
		assert.True(t, models.FolderID{}.IsZero())
		assert.False(t, models.NewNoteID().IsZero())
	})

	t.Run("RecordIDTables", func(t *testing.T) {
		assert.Equal(t, "folders", models.NewFolderID().RecordID().Table)
		assert.Equal(t, "notes", models.NewNoteID().RecordID().Table)
		assert.Equal(t, "users", models.NewUserID().RecordID().Table)
	})
}
