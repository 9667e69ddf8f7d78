package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncrtrack/internal/audit"
	"ncrtrack/internal/cache"
	"ncrtrack/internal/domain"
	"ncrtrack/internal/identifier"
	"ncrtrack/internal/notify"
	"ncrtrack/internal/permission"
	"ncrtrack/internal/platform/lock"
	"ncrtrack/internal/schema"
	"ncrtrack/internal/store"
	"ncrtrack/internal/workflow"
)

const (
	adminUser   = "admin@example.com"
	intakeUser  = "intake@example.com"
	qualityUser = "quality@example.com"
	leadUser    = "lead@example.com"
	viewerUser  = "viewer@example.com"
)

type fixture struct {
	engine *workflow.Engine
	store  *store.Memory
	trail  *audit.Recorder
	events *notify.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemory(lock.NewMemoryManager(2 * time.Second))

	cfg := schema.NewManager(st, cache.NewMemory(5*time.Minute), log)
	require.NoError(t, cfg.Bootstrap(ctx))

	perms := permission.NewResolver(st, log)
	require.NoError(t, perms.Bootstrap(ctx, adminUser))
	require.NoError(t, perms.Assign(ctx, intakeUser, domain.RoleIntake, ""))
	require.NoError(t, perms.Assign(ctx, qualityUser, domain.RoleQuality, ""))
	require.NoError(t, perms.Assign(ctx, leadUser, domain.RoleLeadership, ""))

	clock := func() time.Time {
		return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	}

	trail := audit.NewRecorder(audit.NewMemoryStore(), log, audit.WithClock(clock))
	events := notify.NewMemory()

	engine := workflow.NewEngine(st, cfg, perms,
		identifier.NewGenerator(st, identifier.WithNow(clock)),
		trail, events, log, workflow.WithClock(clock))

	return &fixture{engine: engine, store: st, trail: trail, events: events}
}

func intakePatch() map[string]string {
	return map[string]string{
		"Date":                 "2025-06-01",
		"Customer":             "Acme Corp",
		"Description":          "Paint defects on batch 42",
		"Sector":               "Production",
		domain.FieldReportType: "Customer complaint",
	}
}

func qualityPatch() map[string]string {
	return map[string]string{
		"Analysis Date": "2025-06-02",
		"Risk":          "High",
		"Failure Type":  "Process",
	}
}

func leadershipPatch() map[string]string {
	return map[string]string{
		"Action Plan":  "Recalibrate the paint line",
		"Action Owner": "J. Smith",
	}
}

// createRecord submits a fresh intake record and returns its number.
func (f *fixture) createRecord(t *testing.T) string {
	t.Helper()
	res, err := f.engine.Submit(context.Background(), workflow.SubmitRequest{
		Patch: intakePatch(), Actor: intakeUser,
	})
	require.NoError(t, err)
	return res.Number
}

// advanceTo drives a fresh record up to the wanted status.
func (f *fixture) advanceTo(t *testing.T, target domain.Status) string {
	t.Helper()
	ctx := context.Background()
	number := f.createRecord(t)
	if target == domain.StatusIntake {
		return number
	}

	res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
		Number: number, Patch: qualityPatch(), Actor: qualityUser,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusQualityReview, res.Status)
	if target == domain.StatusQualityReview {
		return number
	}

	res, err = f.engine.Submit(ctx, workflow.SubmitRequest{
		Number: number, Patch: leadershipPatch(), Actor: leadUser,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusActionReview, res.Status)
	require.Equal(t, domain.StatusActionReview, target)
	return number
}

func TestSubmit_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("first record of the year is 0001", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Patch: intakePatch(), Actor: intakeUser,
		})
		require.NoError(t, err)
		assert.Equal(t, "0001/2025", res.Number)
		assert.Equal(t, domain.StatusIntake, res.Status)
		assert.True(t, res.Created)

		row, err := f.engine.Get(ctx, res.Number)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", row["Customer"])
		assert.Equal(t, intakeUser, row[domain.FieldCreatedBy])
	})

	t.Run("numbers are sequential", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, "0001/2025", f.createRecord(t))
		assert.Equal(t, "0002/2025", f.createRecord(t))
		assert.Equal(t, "0003/2025", f.createRecord(t))
	})

	t.Run("missing required intake fields reject the whole submission", func(t *testing.T) {
		f := newFixture(t)

		patch := intakePatch()
		delete(patch, "Customer")
		patch["Description"] = "   " // whitespace-only counts as empty

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{Patch: patch, Actor: intakeUser})

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ElementsMatch(t, []string{"Customer", "Description"}, verr.Fields())

		rows, err := f.engine.List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, rows, "nothing written on validation failure")
	})

	t.Run("viewer cannot create", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{Patch: intakePatch(), Actor: viewerUser})

		var denied *domain.PermissionDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Contains(t, denied.Sections, domain.SectionIntake)
	})

	t.Run("admin can create", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{Patch: intakePatch(), Actor: adminUser})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIntake, res.Status)
	})

	t.Run("unknown fields in the patch are ignored", func(t *testing.T) {
		f := newFixture(t)

		patch := intakePatch()
		patch["Status"] = "Finalized" // system field, not writable
		patch["Ghost"] = "boo"

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{Patch: patch, Actor: intakeUser})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIntake, res.Status)

		row, err := f.engine.Get(ctx, res.Number)
		require.NoError(t, err)
		assert.NotContains(t, row, "Ghost")
	})
}

func TestSubmit_Progression(t *testing.T) {
	ctx := context.Background()

	t.Run("quality edit moves intake to quality review", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: qualityPatch(), Actor: qualityUser,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusQualityReview, res.Status)
	})

	t.Run("leadership edit moves quality review to action review", func(t *testing.T) {
		f := newFixture(t)
		number := f.advanceTo(t, domain.StatusQualityReview)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: leadershipPatch(), Actor: leadUser,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActionReview, res.Status)
	})

	t.Run("completed corrective action finalizes from action review", func(t *testing.T) {
		f := newFixture(t)
		number := f.advanceTo(t, domain.StatusActionReview)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch:  map[string]string{domain.FieldActionStatus: "Completed"},
			Actor:  leadUser,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinalized, res.Status)
	})

	t.Run("completed corrective action does not finalize from quality review", func(t *testing.T) {
		f := newFixture(t)
		number := f.advanceTo(t, domain.StatusQualityReview)

		patch := leadershipPatch()
		patch[domain.FieldActionStatus] = "Completed"

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: patch, Actor: leadUser,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActionReview, res.Status)
	})

	t.Run("does not apply finalizes from any state", func(t *testing.T) {
		for _, target := range []domain.Status{
			domain.StatusIntake, domain.StatusQualityReview, domain.StatusActionReview,
		} {
			t.Run(string(target), func(t *testing.T) {
				f := newFixture(t)
				number := f.advanceTo(t, target)

				res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
					Number: number,
					Patch:  map[string]string{domain.FieldReportType: "Does not apply"},
					Actor:  adminUser,
				})
				require.NoError(t, err)
				assert.Equal(t, domain.StatusFinalized, res.Status,
					"finalizes without a corrective action status")
			})
		}
	})

	t.Run("quality review transition demands the analysis fields", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch:  map[string]string{"Risk": "High"},
			Actor:  qualityUser,
		})

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ElementsMatch(t, []string{"Analysis Date", "Failure Type"}, verr.Fields())
		assert.Empty(t, res.Number)

		row, err := f.engine.Get(ctx, number)
		require.NoError(t, err)
		assert.Empty(t, row["Risk"], "nothing written on validation failure")
	})

	t.Run("finalized records accept edits without regressing", func(t *testing.T) {
		f := newFixture(t)
		number := f.advanceTo(t, domain.StatusActionReview)

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch:  map[string]string{domain.FieldActionStatus: "Completed"},
			Actor:  leadUser,
		})
		require.NoError(t, err)

		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch:  map[string]string{"Action Plan": "Amended plan"},
			Actor:  leadUser,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinalized, res.Status)
	})
}

func TestSubmit_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("resubmitting equal values touches nothing", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		// Same values, extra whitespace: normalization makes them equal.
		patch := map[string]string{
			"Customer":    "  Acme Corp  ",
			"Description": "Paint defects on batch 42",
		}
		res, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: patch, Actor: viewerUser,
		})
		require.NoError(t, err, "a no-op submission needs no edit permission")
		assert.Equal(t, domain.StatusIntake, res.Status)
		assert.Empty(t, res.Changed)

		entries, err := f.trail.ForRecord(ctx, number)
		require.NoError(t, err)
		created := len(intakePatch())
		assert.Len(t, entries, created, "no audit entries beyond the create")
	})

	t.Run("denied sections are aggregated", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		patch := qualityPatch()
		for k, v := range leadershipPatch() {
			patch[k] = v
		}
		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: patch, Actor: intakeUser,
		})

		var denied *domain.PermissionDeniedError
		require.ErrorAs(t, err, &denied)
		assert.ElementsMatch(t,
			[]domain.Section{domain.SectionQuality, domain.SectionLeadership},
			denied.Sections)

		row, err := f.engine.Get(ctx, number)
		require.NoError(t, err)
		assert.Empty(t, row["Risk"], "nothing written on permission failure")
	})

	t.Run("unknown record is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: "9999/2025",
			Patch:  map[string]string{"Customer": "Ghost"},
			Actor:  adminUser,
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("audit trail records exactly the touched fields", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch: map[string]string{
				"Analysis Date": "2025-06-02",
				"Risk":          "High",
				"Failure Type":  "Process",
				"Customer":      "Acme Corp", // unchanged, must not appear
			},
			Actor: adminUser,
		})
		require.NoError(t, err)

		entries, err := f.trail.ForRecord(ctx, number)
		require.NoError(t, err)

		var updated []string
		for _, e := range entries {
			if e.Actor == adminUser {
				updated = append(updated, e.Field)
			}
		}
		assert.ElementsMatch(t, []string{"Analysis Date", "Risk", "Failure Type"}, updated)
	})

	t.Run("events are published for create, update and status change", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number, Patch: qualityPatch(), Actor: qualityUser,
		})
		require.NoError(t, err)

		var kinds []notify.Kind
		for _, e := range f.events.Events() {
			kinds = append(kinds, e.Kind)
		}
		assert.Equal(t, []notify.Kind{
			notify.KindCreated, notify.KindUpdated, notify.KindStatusChanged,
		}, kinds)

		last := f.events.Events()[2]
		assert.Equal(t, string(domain.StatusIntake), last.Payload["from"])
		assert.Equal(t, string(domain.StatusQualityReview), last.Payload["to"])
	})
}

func TestDeleteRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("delete is soft and list hides it", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		require.NoError(t, f.engine.Delete(ctx, number, adminUser))

		rows, err := f.engine.List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)

		row, err := f.engine.Get(ctx, number)
		require.NoError(t, err, "the row itself survives")
		assert.Equal(t, string(domain.StatusDeleted), row[domain.FieldStatus])
	})

	t.Run("deleted records refuse edits", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)
		require.NoError(t, f.engine.Delete(ctx, number, adminUser))

		_, err := f.engine.Submit(ctx, workflow.SubmitRequest{
			Number: number,
			Patch:  map[string]string{"Customer": "New name"},
			Actor:  adminUser,
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("only all-section editors may delete", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		err := f.engine.Delete(ctx, number, qualityUser)
		var denied *domain.PermissionDeniedError
		require.ErrorAs(t, err, &denied)
	})

	t.Run("restore re-derives the status from content", func(t *testing.T) {
		f := newFixture(t)
		number := f.advanceTo(t, domain.StatusQualityReview)

		require.NoError(t, f.engine.Delete(ctx, number, adminUser))
		require.NoError(t, f.engine.Restore(ctx, number, adminUser))

		row, err := f.engine.Get(ctx, number)
		require.NoError(t, err)
		assert.Equal(t, string(domain.StatusQualityReview), row[domain.FieldStatus])
	})

	t.Run("delete and restore are idempotent", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		require.NoError(t, f.engine.Restore(ctx, number, adminUser), "restoring a live record is a no-op")
		require.NoError(t, f.engine.Delete(ctx, number, adminUser))
		require.NoError(t, f.engine.Delete(ctx, number, adminUser))
	})
}

func TestListAndSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("list filters combine with the non-deleted guard", func(t *testing.T) {
		f := newFixture(t)
		f.createRecord(t)
		number := f.advanceTo(t, domain.StatusQualityReview)

		rows, err := f.engine.List(ctx, store.Filters{
			domain.FieldStatus: string(domain.StatusQualityReview),
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, number, rows[0][domain.FieldNumber])
	})

	t.Run("search matches any cell case-insensitively", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)

		rows, err := f.engine.Search(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, number, rows[0][domain.FieldNumber])

		rows, err = f.engine.Search(ctx, "no such text")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("search skips deleted records and blank terms", func(t *testing.T) {
		f := newFixture(t)
		number := f.createRecord(t)
		require.NoError(t, f.engine.Delete(ctx, number, adminUser))

		rows, err := f.engine.Search(ctx, "acme")
		require.NoError(t, err)
		assert.Empty(t, rows)

		rows, err = f.engine.Search(ctx, "   ")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
