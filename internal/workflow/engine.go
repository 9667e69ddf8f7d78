// Package workflow is the submission pipeline: it diffs incoming field values
// against the stored record, gates the touched sections on the actor's
// permissions, derives the resulting status, and persists the merged record
// under the table write lock. Audit entries and notification events are
// emitted after the write and never fail it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ncrtrack/internal/audit"
	"ncrtrack/internal/domain"
	"ncrtrack/internal/identifier"
	"ncrtrack/internal/notify"
	"ncrtrack/internal/permission"
	"ncrtrack/internal/platform/metrics"
	"ncrtrack/internal/schema"
	"ncrtrack/internal/store"
)

// SubmitRequest carries one form submission. An empty Number means create.
// Patch holds raw field values as posted; the engine normalizes and diffs
// them itself.
type SubmitRequest struct {
	Number string
	Patch  map[string]string
	Actor  string
}

// SubmitResult reports the outcome of a successful submission.
type SubmitResult struct {
	Number  string        `json:"number"`
	Status  domain.Status `json:"status"`
	Created bool          `json:"created"`
	// Changed lists the fields the submission actually modified.
	Changed []string `json:"changed,omitempty"`
}

// Engine orchestrates record submissions.
type Engine struct {
	store  store.TableStore
	schema *schema.Manager
	perms  *permission.Resolver
	ids    *identifier.Generator
	audit  *audit.Recorder
	notify notify.Publisher
	log    *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source. For tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	st store.TableStore,
	cfg *schema.Manager,
	perms *permission.Resolver,
	ids *identifier.Generator,
	rec *audit.Recorder,
	pub notify.Publisher,
	log *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:  st,
		schema: cfg,
		perms:  perms,
		ids:    ids,
		audit:  rec,
		notify: pub,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit creates or updates a record. Nothing is written when permission or
// validation checks fail.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	var (
		res SubmitResult
		err error
	)
	if req.Number == "" {
		res, err = e.create(ctx, req)
	} else {
		res, err = e.update(ctx, req)
	}
	metrics.SubmitsTotal.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func outcome(res SubmitResult, err error) string {
	switch {
	case err == nil && res.Created:
		return "created"
	case err == nil && len(res.Changed) == 0:
		return "unchanged"
	case err == nil:
		return "updated"
	case errors.As(err, new(*domain.PermissionDeniedError)):
		return "denied"
	case errors.As(err, new(*domain.ValidationError)):
		return "invalid"
	case domain.IsRetryable(err):
		return "busy"
	default:
		return "error"
	}
}

func (e *Engine) create(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	fields, err := e.schema.AllFields(ctx)
	if err != nil {
		return SubmitResult{}, err
	}

	patch := normalizePatch(req.Patch, fields)

	touched := map[domain.Section]bool{domain.SectionIntake: true}
	for field, value := range patch {
		if value != "" {
			touched[sectionOf(fields, field)] = true
		}
	}
	if err := e.perms.CheckWriteAllowed(ctx, req.Actor, sectionList(touched)); err != nil {
		return SubmitResult{}, err
	}

	var violations []domain.Violation
	for _, f := range fields {
		if f.Section == string(domain.SectionIntake) && f.Required && patch[f.Name] == "" {
			violations = append(violations, domain.Violation{Field: f.Name, Rule: "required"})
		}
	}
	if len(violations) > 0 {
		return SubmitResult{}, &domain.ValidationError{Violations: violations}
	}

	now := e.now()
	var number string

	// The lock spans identifier generation and the insert so two concurrent
	// creators cannot scan the same maximum.
	err = e.store.WithTableLock(ctx, domain.TableRecords, func(ctx context.Context) error {
		number, err = e.ids.Next(ctx)
		if err != nil {
			return err
		}

		row := store.Row{
			domain.FieldNumber:     number,
			domain.FieldStatus:     string(domain.StatusIntake),
			domain.FieldCreatedAt:  now,
			domain.FieldCreatedBy:  req.Actor,
			domain.FieldLastEdited: now,
			domain.FieldEditedBy:   req.Actor,
		}
		for field, value := range patch {
			row[field] = value
		}
		_, err := e.store.Insert(ctx, domain.TableRecords, row)
		return err
	})
	if err != nil {
		return SubmitResult{}, e.translate("create record", err)
	}

	var changes []audit.Change
	var changed []string
	for _, f := range fields {
		if v := patch[f.Name]; v != "" {
			changes = append(changes, audit.Change{
				Field: f.Name, Section: f.Section, NewValue: v,
			})
			changed = append(changed, f.Name)
		}
	}
	e.audit.Record(ctx, number, req.Actor, changes)
	e.notify.Publish(ctx, notify.Event{
		RecordNumber: number,
		Kind:         notify.KindCreated,
		Actor:        req.Actor,
		At:           now,
	})

	e.log.Info("record created", "number", number, "actor", req.Actor)
	return SubmitResult{Number: number, Status: domain.StatusIntake, Created: true, Changed: changed}, nil
}

func (e *Engine) update(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	current, err := e.loadRecord(ctx, req.Number)
	if err != nil {
		return SubmitResult{}, err
	}

	status := domain.Status(normalizeValue(current[domain.FieldStatus]))
	if status == domain.StatusDeleted {
		return SubmitResult{}, &domain.ValidationError{Violations: []domain.Violation{
			{Field: domain.FieldStatus, Rule: "record is deleted; restore it first"},
		}}
	}

	fields, err := e.schema.AllFields(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	patch := normalizePatch(req.Patch, fields)

	// Diff after normalization: only genuine value changes count as touches.
	var changes []audit.Change
	touched := make(map[domain.Section]bool)
	for _, f := range fields {
		newValue, posted := patch[f.Name]
		if !posted {
			continue
		}
		oldValue := normalizeValue(current[f.Name])
		if newValue == oldValue {
			continue
		}
		changes = append(changes, audit.Change{
			Field: f.Name, Section: f.Section, OldValue: oldValue, NewValue: newValue,
		})
		touched[domain.Section(f.Section)] = true
	}

	if len(changes) == 0 {
		return SubmitResult{Number: req.Number, Status: status}, nil
	}

	if err := e.perms.CheckWriteAllowed(ctx, req.Actor, sectionList(touched)); err != nil {
		return SubmitResult{}, err
	}

	merged := func(field string) string {
		if v, ok := patch[field]; ok {
			return v
		}
		return normalizeValue(current[field])
	}

	newStatus := deriveStatus(status, touched, merged)
	if newStatus != status {
		if err := validateTransition(status, newStatus, merged); err != nil {
			return SubmitResult{}, err
		}
	}

	now := e.now()
	write := store.Row{
		domain.FieldLastEdited: now,
		domain.FieldEditedBy:   req.Actor,
	}
	for _, c := range changes {
		write[c.Field] = c.NewValue
	}
	if newStatus != status {
		write[domain.FieldStatus] = string(newStatus)
	}

	_, err = e.store.Update(ctx, domain.TableRecords,
		store.Filters{domain.FieldNumber: req.Number}, write)
	if err != nil {
		return SubmitResult{}, e.translate("update record", err)
	}

	e.audit.Record(ctx, req.Number, req.Actor, changes)
	e.notify.Publish(ctx, notify.Event{
		RecordNumber: req.Number,
		Kind:         notify.KindUpdated,
		Actor:        req.Actor,
		At:           now,
	})
	if newStatus != status {
		e.notify.Publish(ctx, notify.Event{
			RecordNumber: req.Number,
			Kind:         notify.KindStatusChanged,
			Actor:        req.Actor,
			Payload:      map[string]string{"from": string(status), "to": string(newStatus)},
			At:           now,
		})
		e.log.Info("record progressed",
			"number", req.Number, "from", status, "to", newStatus, "actor", req.Actor)
	}

	changed := make([]string, len(changes))
	for i, c := range changes {
		changed[i] = c.Field
	}
	return SubmitResult{Number: req.Number, Status: newStatus, Changed: changed}, nil
}

func (e *Engine) loadRecord(ctx context.Context, number string) (store.Row, error) {
	rows, err := e.store.Find(ctx, domain.TableRecords,
		store.Filters{domain.FieldNumber: number}, &store.FindOptions{Limit: 1})
	if err != nil {
		return nil, &domain.BackendError{Op: "load record", Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", number, domain.ErrNotFound)
	}
	return rows[0], nil
}

func (e *Engine) translate(op string, err error) error {
	if domain.IsRetryable(err) {
		return domain.ErrBusy
	}
	var denied *domain.PermissionDeniedError
	var invalid *domain.ValidationError
	if errors.As(err, &denied) || errors.As(err, &invalid) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return &domain.BackendError{Op: op, Err: err}
}

// normalizePatch trims posted values and drops anything that is not a
// configured field. System fields are never writable through a submission.
func normalizePatch(raw map[string]string, fields []schema.Field) map[string]string {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}
	patch := make(map[string]string, len(raw))
	for field, value := range raw {
		if known[field] {
			patch[field] = strings.TrimSpace(value)
		}
	}
	return patch
}

func normalizeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func sectionOf(fields []schema.Field, name string) domain.Section {
	for _, f := range fields {
		if f.Name == name {
			return domain.Section(f.Section)
		}
	}
	return domain.SectionIntake
}

func sectionList(touched map[domain.Section]bool) []domain.Section {
	ordered := []domain.Section{domain.SectionIntake, domain.SectionQuality, domain.SectionLeadership}
	var out []domain.Section
	for _, s := range ordered {
		if touched[s] {
			out = append(out, s)
		}
	}
	// Sections outside the three built-ins still gate, appended after.
	for s := range touched {
		if s != domain.SectionIntake && s != domain.SectionQuality && s != domain.SectionLeadership {
			out = append(out, s)
		}
	}
	return out
}
