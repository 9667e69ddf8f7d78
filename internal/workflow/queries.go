package workflow

import (
	"context"
	"strings"

	"ncrtrack/internal/domain"
	"ncrtrack/internal/notify"
	"ncrtrack/internal/store"
)

const searchBatchSize = 100

// Get returns the record addressed by number, deleted or not.
func (e *Engine) Get(ctx context.Context, number string) (store.Row, error) {
	return e.loadRecord(ctx, number)
}

// List returns non-deleted records matching the filters, newest first.
func (e *Engine) List(ctx context.Context, filters store.Filters) ([]store.Row, error) {
	merged := store.Filters{
		domain.FieldStatus: store.Condition{Op: "!=", Value: string(domain.StatusDeleted)},
	}
	for field, cond := range filters {
		merged[field] = cond
	}
	rows, err := e.store.Find(ctx, domain.TableRecords, merged,
		&store.FindOptions{OrderBy: domain.FieldCreatedAt, Desc: true})
	if err != nil {
		return nil, &domain.BackendError{Op: "list records", Err: err}
	}
	return rows, nil
}

// Search scans non-deleted records for a term in any cell, case-insensitive.
// It pages through the table in windows so the scan never holds the lock.
func (e *Engine) Search(ctx context.Context, term string) ([]store.Row, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	var matches []store.Row
	_, err := e.store.Batch(ctx, domain.TableRecords, func(rows []store.Row, _ int) (any, error) {
		for _, row := range rows {
			if normalizeValue(row[domain.FieldStatus]) == string(domain.StatusDeleted) {
				continue
			}
			for _, value := range row {
				if containsFold(normalizeValue(value), term) {
					matches = append(matches, row)
					break
				}
			}
		}
		return nil, nil
	}, searchBatchSize)
	if err != nil {
		return nil, e.translate("search records", err)
	}
	return matches, nil
}

// Delete soft-deletes a record by setting its status. Rows are never
// physically removed; Restore brings them back.
func (e *Engine) Delete(ctx context.Context, number, actor string) error {
	return e.setDeleted(ctx, number, actor, true)
}

// Restore re-derives the record's status from its content: which sections
// hold values decides how far along the pipeline it resumes.
func (e *Engine) Restore(ctx context.Context, number, actor string) error {
	return e.setDeleted(ctx, number, actor, false)
}

func (e *Engine) setDeleted(ctx context.Context, number, actor string, deleted bool) error {
	current, err := e.loadRecord(ctx, number)
	if err != nil {
		return err
	}

	allSections := []domain.Section{domain.SectionIntake, domain.SectionQuality, domain.SectionLeadership}
	if err := e.perms.CheckWriteAllowed(ctx, actor, allSections); err != nil {
		return err
	}

	status := domain.Status(normalizeValue(current[domain.FieldStatus]))
	var target domain.Status
	if deleted {
		if status == domain.StatusDeleted {
			return nil
		}
		target = domain.StatusDeleted
	} else {
		if status != domain.StatusDeleted {
			return nil
		}
		restored, err := e.statusFromContent(ctx, current)
		if err != nil {
			return err
		}
		target = restored
	}

	now := e.now()
	_, err = e.store.Update(ctx, domain.TableRecords,
		store.Filters{domain.FieldNumber: number}, store.Row{
			domain.FieldStatus:     string(target),
			domain.FieldLastEdited: now,
			domain.FieldEditedBy:   actor,
		})
	if err != nil {
		return e.translate("set record status", err)
	}

	e.notify.Publish(ctx, notify.Event{
		RecordNumber: number,
		Kind:         notify.KindStatusChanged,
		Actor:        actor,
		Payload:      map[string]string{"from": string(status), "to": string(target)},
		At:           now,
	})
	e.log.Info("record status set", "number", number, "status", target, "actor", actor)
	return nil
}

// statusFromContent rebuilds the pipeline position from the filled sections,
// then applies the finalization rules on top.
func (e *Engine) statusFromContent(ctx context.Context, row store.Row) (domain.Status, error) {
	fields, err := e.schema.AllFields(ctx)
	if err != nil {
		return "", err
	}

	filled := make(map[domain.Section]bool)
	for _, f := range fields {
		if normalizeValue(row[f.Name]) != "" {
			filled[domain.Section(f.Section)] = true
		}
	}

	status := domain.StatusIntake
	if filled[domain.SectionQuality] {
		status = domain.StatusQualityReview
	}
	if filled[domain.SectionLeadership] {
		status = domain.StatusActionReview
	}

	value := func(field string) string { return normalizeValue(row[field]) }
	if containsFold(value(domain.FieldReportType), domain.ValueDoesNotApply) {
		return domain.StatusFinalized, nil
	}
	if status == domain.StatusActionReview &&
		containsFold(value(domain.FieldActionStatus), domain.ValueActionCompleted) {
		return domain.StatusFinalized, nil
	}
	return status, nil
}
