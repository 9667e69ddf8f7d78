package schema_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncrtrack/internal/cache"
	"ncrtrack/internal/domain"
	"ncrtrack/internal/platform/lock"
	"ncrtrack/internal/schema"
	"ncrtrack/internal/store"
)

func newTestManager(t *testing.T) (*schema.Manager, *store.Memory) {
	t.Helper()
	st := store.NewMemory(lock.NewMemoryManager(time.Second))
	m := schema.NewManager(st, cache.NewMemory(5*time.Minute),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, m.Bootstrap(context.Background()))
	return m, st
}

func TestBootstrap(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	t.Run("seeds default sections in rank order", func(t *testing.T) {
		sections, err := m.Sections(ctx)
		require.NoError(t, err)
		require.Len(t, sections, 3)
		assert.Equal(t, "Intake", sections[0].Name)
		assert.Equal(t, "Quality", sections[1].Name)
		assert.Equal(t, "Leadership", sections[2].Name)
	})

	t.Run("record table carries system and configured columns", func(t *testing.T) {
		headers, err := st.Headers(ctx, domain.TableRecords)
		require.NoError(t, err)
		assert.Contains(t, headers, domain.FieldNumber)
		assert.Contains(t, headers, domain.FieldStatus)
		assert.Contains(t, headers, "Customer")
		assert.Contains(t, headers, "Risk")
		assert.Contains(t, headers, "Action Plan")
	})

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, m.Bootstrap(ctx))
		sections, err := m.Sections(ctx)
		require.NoError(t, err)
		assert.Len(t, sections, 3)
	})
}

func TestFieldsForSection(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	fields, err := m.FieldsForSection(ctx, "Intake")
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, "Date", fields[0].Name)
	assert.Equal(t, domain.FieldReportType, fields[4].Name)
	for _, f := range fields {
		assert.True(t, f.Active)
		assert.Equal(t, "Intake", f.Section)
	}
}

func TestSectionOf(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	section, err := m.SectionOf(ctx, "Risk")
	require.NoError(t, err)
	assert.Equal(t, "Quality", section)

	section, err = m.SectionOf(ctx, "No Such Field")
	require.NoError(t, err)
	assert.Empty(t, section)
}

func TestLists(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	lists, err := m.Lists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Low", "Medium", "High", "Critical"}, lists["Risk Levels"])
	assert.Contains(t, lists["Report Types"], "Does not apply")
}

func TestSaveField(t *testing.T) {
	ctx := context.Background()

	t.Run("new field appears after save and gets a record column", func(t *testing.T) {
		m, st := newTestManager(t)

		err := m.SaveField(ctx, schema.Field{
			Section: "Quality", Name: "Containment Action", Type: "textarea", Rank: 6, Active: true,
		})
		require.NoError(t, err)

		fields, err := m.FieldsForSection(ctx, "Quality")
		require.NoError(t, err)
		names := fieldNames(fields)
		assert.Contains(t, names, "Containment Action")

		headers, err := st.Headers(ctx, domain.TableRecords)
		require.NoError(t, err)
		assert.Contains(t, headers, "Containment Action")
	})

	t.Run("saving an existing field updates in place", func(t *testing.T) {
		m, _ := newTestManager(t)

		err := m.SaveField(ctx, schema.Field{
			Section: "Quality", Name: "Risk", Type: "select", Required: true, Rank: 2, Active: true, List: "Risk Levels",
		})
		require.NoError(t, err)

		fields, err := m.FieldsForSection(ctx, "Quality")
		require.NoError(t, err)
		assert.Len(t, fields, 5, "no duplicate definition created")
		for _, f := range fields {
			if f.Name == "Risk" {
				assert.True(t, f.Required)
			}
		}
	})

	t.Run("stale cache is invalidated by the mutation", func(t *testing.T) {
		m, _ := newTestManager(t)

		// Warm the cache.
		_, err := m.FieldsForSection(ctx, "Intake")
		require.NoError(t, err)

		err = m.SaveField(ctx, schema.Field{
			Section: "Intake", Name: "Order Number", Type: "input", Rank: 6, Active: true,
		})
		require.NoError(t, err)

		fields, err := m.FieldsForSection(ctx, "Intake")
		require.NoError(t, err)
		assert.Contains(t, fieldNames(fields), "Order Number")
	})
}

func TestDeleteField(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.DeleteField(ctx, "Quality", "Risk"))

	fields, err := m.FieldsForSection(ctx, "Quality")
	require.NoError(t, err)
	assert.NotContains(t, fieldNames(fields), "Risk")

	// Historical data stays readable: the record column survives.
	headers, err := st.Headers(ctx, domain.TableRecords)
	require.NoError(t, err)
	assert.Contains(t, headers, "Risk")

	err = m.DeleteField(ctx, "Quality", "No Such Field")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSaveSection(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	err := m.SaveSection(ctx, schema.Section{Name: "Logistics", Description: "Shipping follow-up", Rank: 4, Active: true})
	require.NoError(t, err)

	sections, err := m.Sections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 4)
	assert.Equal(t, "Logistics", sections[3].Name)

	// Re-rank moves it, does not duplicate it.
	err = m.SaveSection(ctx, schema.Section{Name: "Logistics", Rank: 0, Active: true})
	require.NoError(t, err)

	sections, err = m.Sections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 4)
	assert.Equal(t, "Logistics", sections[0].Name)
}

func TestDeleteSection(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.DeleteSection(ctx, "Leadership"))

	sections, err := m.Sections(ctx)
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	err = m.DeleteSection(ctx, "No Such Section")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSaveList(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("replaces the list wholesale", func(t *testing.T) {
		require.NoError(t, m.SaveList(ctx, "Risk Levels", []string{"Minor", "Major"}))

		lists, err := m.Lists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Minor", "Major"}, lists["Risk Levels"])
	})

	t.Run("empty items leave an empty list", func(t *testing.T) {
		require.NoError(t, m.SaveList(ctx, "Risk Levels", nil))

		lists, err := m.Lists(ctx)
		require.NoError(t, err)
		assert.Empty(t, lists["Risk Levels"])
	})
}

func TestDeleteList(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.DeleteList(ctx, "Sectors"))

	lists, err := m.Lists(ctx)
	require.NoError(t, err)
	assert.NotContains(t, lists, "Sectors")

	err = m.DeleteList(ctx, "Sectors")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func fieldNames(fields []schema.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
