// Package schema is the configuration registry: sections, field definitions,
// and option lists, read through a TTL cache and kept in the record store.
// Every mutation invalidates the keys it touches; the cache TTL is only a
// backstop.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"golang.org/x/sync/singleflight"

	"ncrtrack/internal/cache"
	"ncrtrack/internal/domain"
	"ncrtrack/internal/store"
)

const (
	keySections    = "config:sections"
	keyFieldPrefix = "config:fields:"
	keyLists       = "config:lists"
)

// Manager serves configuration reads and applies configuration mutations.
// Concurrent cold reads of the same key collapse into one store load.
type Manager struct {
	store store.TableStore
	cache cache.Cache
	log   *slog.Logger
	group singleflight.Group
}

func NewManager(st store.TableStore, c cache.Cache, log *slog.Logger) *Manager {
	return &Manager{store: st, cache: c, log: log}
}

// Bootstrap creates the configuration tables and, when the section table is
// empty, seeds the default configuration. It then makes sure the record table
// carries a column for every active field.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if err := m.store.EnsureTable(ctx, domain.TableSections, sectionHeaders); err != nil {
		return fmt.Errorf("ensure sections table: %w", err)
	}
	if err := m.store.EnsureTable(ctx, domain.TableFields, fieldHeaders); err != nil {
		return fmt.Errorf("ensure fields table: %w", err)
	}
	if err := m.store.EnsureTable(ctx, domain.TableLists, listHeaders); err != nil {
		return fmt.Errorf("ensure lists table: %w", err)
	}

	existing, err := m.store.Find(ctx, domain.TableSections, store.Filters{}, &store.FindOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("probe sections table: %w", err)
	}
	if len(existing) == 0 {
		if err := m.seed(ctx); err != nil {
			return fmt.Errorf("seed default configuration: %w", err)
		}
		m.log.Info("seeded default configuration")
	}

	if err := m.store.EnsureTable(ctx, domain.TableRecords, domain.SystemFields); err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return m.SyncRecordColumns(ctx)
}

// Sections returns the active sections ordered by rank.
func (m *Manager) Sections(ctx context.Context) ([]Section, error) {
	var cached []Section
	if hit, err := m.cache.Get(ctx, keySections, &cached); err == nil && hit {
		return cached, nil
	}

	v, err, _ := m.group.Do(keySections, func() (any, error) {
		return m.loadSections(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Section), nil
}

func (m *Manager) loadSections(ctx context.Context) ([]Section, error) {
	rows, err := m.store.Find(ctx, domain.TableSections,
		store.Filters{"Active": activeYes}, nil)
	if err != nil {
		return nil, &domain.BackendError{Op: "load sections", Err: err}
	}
	sections := make([]Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, sectionFromRow(row))
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Rank < sections[j].Rank })
	m.put(ctx, keySections, sections)
	return sections, nil
}

// FieldsForSection returns the section's active field definitions ordered by
// rank.
func (m *Manager) FieldsForSection(ctx context.Context, section string) ([]Field, error) {
	key := keyFieldPrefix + section

	var cached []Field
	if hit, err := m.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		rows, err := m.store.Find(ctx, domain.TableFields,
			store.Filters{"Section": section, "Active": activeYes}, nil)
		if err != nil {
			return nil, &domain.BackendError{Op: "load fields", Err: err}
		}
		fields := make([]Field, 0, len(rows))
		for _, row := range rows {
			fields = append(fields, fieldFromRow(row))
		}
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Rank < fields[j].Rank })
		m.put(ctx, key, fields)
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Field), nil
}

// AllFields returns every active field across sections, in section rank then
// field rank order.
func (m *Manager) AllFields(ctx context.Context) ([]Field, error) {
	sections, err := m.Sections(ctx)
	if err != nil {
		return nil, err
	}
	var all []Field
	for _, s := range sections {
		fields, err := m.FieldsForSection(ctx, s.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, fields...)
	}
	return all, nil
}

// SectionOf reports which section owns the given field name, or "" when no
// active field carries it.
func (m *Manager) SectionOf(ctx context.Context, field string) (string, error) {
	fields, err := m.AllFields(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.Name == field {
			return f.Section, nil
		}
	}
	return "", nil
}

// Lists returns every option list, items ordered by position.
func (m *Manager) Lists(ctx context.Context) (map[string][]string, error) {
	var cached map[string][]string
	if hit, err := m.cache.Get(ctx, keyLists, &cached); err == nil && hit {
		return cached, nil
	}

	v, err, _ := m.group.Do(keyLists, func() (any, error) {
		rows, err := m.store.Find(ctx, domain.TableLists, store.Filters{},
			&store.FindOptions{OrderBy: "Position"})
		if err != nil {
			return nil, &domain.BackendError{Op: "load lists", Err: err}
		}
		lists := make(map[string][]string)
		for _, row := range rows {
			name := cell(row, "List")
			if name == "" {
				continue
			}
			lists[name] = append(lists[name], cell(row, "Item"))
		}
		m.put(ctx, keyLists, lists)
		return lists, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string][]string), nil
}

// SaveSection inserts or updates a section definition by name.
func (m *Manager) SaveSection(ctx context.Context, s Section) error {
	existing, err := m.store.Find(ctx, domain.TableSections, store.Filters{"Name": s.Name}, nil)
	if err != nil {
		return &domain.BackendError{Op: "save section", Err: err}
	}
	if len(existing) > 0 {
		_, err = m.store.Update(ctx, domain.TableSections, store.Filters{"Name": s.Name}, s.toRow())
	} else {
		_, err = m.store.Insert(ctx, domain.TableSections, s.toRow())
	}
	if err != nil {
		return translateStoreErr("save section", err)
	}
	m.invalidate(ctx, keySections)
	return nil
}

// DeleteSection deactivates a section. Its fields stay configured but stop
// being served.
func (m *Manager) DeleteSection(ctx context.Context, name string) error {
	res, err := m.store.Update(ctx, domain.TableSections,
		store.Filters{"Name": name}, store.Row{"Active": activeNo})
	if err != nil {
		return translateStoreErr("delete section", err)
	}
	if res.RowsUpdated == 0 {
		return domain.ErrNotFound
	}
	m.invalidate(ctx, keySections, keyFieldPrefix+name)
	return nil
}

// SaveField inserts or updates a field definition. The (section, field) pair
// is the identity; creating a new active field also adds the matching record
// column.
func (m *Manager) SaveField(ctx context.Context, f Field) error {
	existing, err := m.store.Find(ctx, domain.TableFields,
		store.Filters{"Section": f.Section, "Field": f.Name}, nil)
	if err != nil {
		return &domain.BackendError{Op: "save field", Err: err}
	}
	if len(existing) > 0 {
		_, err = m.store.Update(ctx, domain.TableFields,
			store.Filters{"Section": f.Section, "Field": f.Name}, f.toRow())
	} else {
		_, err = m.store.Insert(ctx, domain.TableFields, f.toRow())
	}
	if err != nil {
		return translateStoreErr("save field", err)
	}
	if f.Active {
		if err := m.store.AddColumn(ctx, domain.TableRecords, f.Name); err != nil {
			return translateStoreErr("add record column", err)
		}
	}
	m.invalidate(ctx, keyFieldPrefix+f.Section)
	return nil
}

// DeleteField deactivates a field definition. The record column stays so
// historical values remain readable.
func (m *Manager) DeleteField(ctx context.Context, section, name string) error {
	res, err := m.store.Update(ctx, domain.TableFields,
		store.Filters{"Section": section, "Field": name}, store.Row{"Active": activeNo})
	if err != nil {
		return translateStoreErr("delete field", err)
	}
	if res.RowsUpdated == 0 {
		return domain.ErrNotFound
	}
	m.invalidate(ctx, keyFieldPrefix+section)
	return nil
}

// SaveList replaces the named option list wholesale.
func (m *Manager) SaveList(ctx context.Context, name string, items []string) error {
	err := m.store.WithTableLock(ctx, domain.TableLists, func(ctx context.Context) error {
		if _, err := m.store.Delete(ctx, domain.TableLists, store.Filters{"List": name}); err != nil {
			return err
		}
		rows := make([]store.Row, 0, len(items))
		for i, item := range items {
			rows = append(rows, store.Row{
				"List":     name,
				"Item":     item,
				"Position": strconv.Itoa(i + 1),
			})
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := m.store.Insert(ctx, domain.TableLists, rows...)
		return err
	})
	if err != nil {
		return translateStoreErr("save list", err)
	}
	m.invalidate(ctx, keyLists)
	return nil
}

// DeleteList removes the named option list.
func (m *Manager) DeleteList(ctx context.Context, name string) error {
	res, err := m.store.Delete(ctx, domain.TableLists, store.Filters{"List": name})
	if err != nil {
		return translateStoreErr("delete list", err)
	}
	if res.RowsDeleted == 0 {
		return domain.ErrNotFound
	}
	m.invalidate(ctx, keyLists)
	return nil
}

// SyncRecordColumns adds a record column for every active field that lacks
// one. Additive only.
func (m *Manager) SyncRecordColumns(ctx context.Context) error {
	fields, err := m.AllFields(ctx)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := m.store.AddColumn(ctx, domain.TableRecords, f.Name); err != nil {
			return translateStoreErr("sync record columns", err)
		}
	}
	return nil
}

func (m *Manager) put(ctx context.Context, key string, value any) {
	if err := m.cache.Put(ctx, key, value); err != nil {
		m.log.Warn("cache put failed", "key", key, "error", err)
	}
}

func (m *Manager) invalidate(ctx context.Context, keys ...string) {
	if err := m.cache.Invalidate(ctx, keys...); err != nil {
		m.log.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func translateStoreErr(op string, err error) error {
	if domain.IsRetryable(err) {
		return domain.ErrBusy
	}
	return &domain.BackendError{Op: op, Err: err}
}
