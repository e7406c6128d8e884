package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/migrations"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"add refunds table", "add_refunds_table"},
		{"Add-Refund-Index", "add_refund_index"},
		{"  outbox   retry  ", "outbox_retry"},
		{"rate__plans", "rate_plans"},
		{"v2 tiers!", "v2_tiers"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, slugify(tt.input))
		})
	}
}

func TestList(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_invoices.up.sql":   {Data: []byte("")},
		"000002_invoices.down.sql": {Data: []byte("")},
		"000001_rates.up.sql":      {Data: []byte("")},
		"000010_outbox.up.sql":     {Data: []byte("")},
		"README.md":                {Data: []byte("")},
		"notes.sql":                {Data: []byte("")},
		"abc_bad.up.sql":           {Data: []byte("")},
	}

	entries, err := List(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Version: 1, Name: "rates"},
		{Version: 2, Name: "invoices", HasDown: true},
		{Version: 10, Name: "outbox"},
	}, entries)
}

func TestList_EmbeddedSchema(t *testing.T) {
	entries, err := List(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for i, e := range entries {
		assert.Equal(t, uint(i+1), e.Version, "versions are contiguous")
		assert.True(t, e.HasDown, "%s has a rollback", e.Name)
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first, err := Create(dir, "Add refunds table", now)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_refunds_table.up.sql"), first.UpPath)

	second, err := Create(dir, "index payments", now)
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	up, err := os.ReadFile(second.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- index_payments")
	assert.Contains(t, string(up), "2026-05-04T10:00:00Z")

	down, err := os.ReadFile(second.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback of index_payments")

	entries, err := List(os.DirFS(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	_, err := Create(t.TempDir(), "---", time.Now())
	require.Error(t, err)
}

func TestList_MissingDir(t *testing.T) {
	entries, err := List(os.DirFS(filepath.Join(t.TempDir(), "nope")))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
