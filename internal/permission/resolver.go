// Package permission resolves role assignments into effective per-section
// permissions and manages the grant table itself.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ncrtrack/internal/domain"
	"ncrtrack/internal/store"
)

const (
	activeYes = "Yes"
	activeNo  = "No"
)

var grantHeaders = []string{"Email", "Role", "Sector", "Active"}

// Grant is one role assignment for one user. Sector is informational scoping
// carried for reporting; it does not narrow the permission itself.
type Grant struct {
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	Sector string      `json:"sector"`
	Active bool        `json:"active"`
}

// Resolver reads grants from the permission table and folds them into
// effective section levels. Users with no active grant fall back to Viewer.
type Resolver struct {
	store store.TableStore
	log   *slog.Logger
}

func NewResolver(st store.TableStore, log *slog.Logger) *Resolver {
	return &Resolver{store: st, log: log}
}

// Bootstrap creates the permission table and, when it is empty, grants Admin
// to the given addresses so the system is administrable from first boot.
func (r *Resolver) Bootstrap(ctx context.Context, adminEmails ...string) error {
	if err := r.store.EnsureTable(ctx, domain.TablePermissions, grantHeaders); err != nil {
		return fmt.Errorf("ensure permissions table: %w", err)
	}
	existing, err := r.store.Find(ctx, domain.TablePermissions, store.Filters{}, &store.FindOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("probe permissions table: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, email := range adminEmails {
		if err := r.Assign(ctx, email, domain.RoleAdmin, ""); err != nil {
			return err
		}
	}
	return nil
}

// Roles returns the user's active roles. Empty means no explicit grant.
func (r *Resolver) Roles(ctx context.Context, email string) ([]domain.Role, error) {
	rows, err := r.store.Find(ctx, domain.TablePermissions,
		store.Filters{"Email": email, "Active": activeYes}, nil)
	if err != nil {
		return nil, &domain.BackendError{Op: "load roles", Err: err}
	}
	roles := make([]domain.Role, 0, len(rows))
	for _, row := range rows {
		role := domain.Role(rowString(row, "Role"))
		if !validRole(role) {
			r.log.Warn("ignoring grant with unknown role", "email", email, "role", role)
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Resolve computes the user's effective per-section levels. Admin
// short-circuits to edit everywhere; no grant at all means Viewer.
func (r *Resolver) Resolve(ctx context.Context, email string) (map[domain.Section]domain.Level, error) {
	roles, err := r.Roles(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleViewer}
	}

	levels := make(map[domain.Section]domain.Level)
	for _, role := range roles {
		if role == domain.RoleAdmin {
			for section, level := range roleMatrix[domain.RoleAdmin] {
				levels[section] = level
			}
			return levels, nil
		}
		merge(levels, role)
	}
	return levels, nil
}

// CheckWriteAllowed verifies the user may edit every given section. On
// failure it returns a PermissionDeniedError naming all denied sections, not
// just the first.
func (r *Resolver) CheckWriteAllowed(ctx context.Context, email string, sections []domain.Section) error {
	roles, err := r.Roles(ctx, email)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role == domain.RoleAdmin {
			return nil
		}
	}

	levels := make(map[domain.Section]domain.Level)
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleViewer}
	}
	for _, role := range roles {
		merge(levels, role)
	}
	var denied []domain.Section
	for _, section := range sections {
		if levels[section] != domain.LevelEdit {
			denied = append(denied, section)
		}
	}
	if len(denied) > 0 {
		return &domain.PermissionDeniedError{Sections: denied}
	}
	return nil
}

// Assign grants a role, reactivating a revoked grant for the same
// (email, role) pair instead of duplicating it.
func (r *Resolver) Assign(ctx context.Context, email string, role domain.Role, sector string) error {
	if !validRole(role) {
		return &domain.ValidationError{Violations: []domain.Violation{
			{Field: "Role", Rule: "unknown role " + string(role)},
		}}
	}

	existing, err := r.store.Find(ctx, domain.TablePermissions,
		store.Filters{"Email": email, "Role": string(role)}, nil)
	if err != nil {
		return &domain.BackendError{Op: "assign role", Err: err}
	}
	if len(existing) > 0 {
		_, err = r.store.Update(ctx, domain.TablePermissions,
			store.Filters{"Email": email, "Role": string(role)},
			store.Row{"Sector": sector, "Active": activeYes})
	} else {
		_, err = r.store.Insert(ctx, domain.TablePermissions, store.Row{
			"Email":  email,
			"Role":   string(role),
			"Sector": sector,
			"Active": activeYes,
		})
	}
	if err != nil {
		if domain.IsRetryable(err) {
			return domain.ErrBusy
		}
		return &domain.BackendError{Op: "assign role", Err: err}
	}
	r.log.Info("role assigned", "email", email, "role", role)
	return nil
}

// Revoke deactivates a grant. Revoking the last active Admin is refused so
// the system cannot lock itself out.
func (r *Resolver) Revoke(ctx context.Context, email string, role domain.Role) error {
	if role == domain.RoleAdmin {
		admins, err := r.store.Find(ctx, domain.TablePermissions,
			store.Filters{"Role": string(domain.RoleAdmin), "Active": activeYes}, nil)
		if err != nil {
			return &domain.BackendError{Op: "revoke role", Err: err}
		}
		if lastAdminIs(admins, email) {
			return &domain.ValidationError{Violations: []domain.Violation{
				{Field: "Role", Rule: "cannot revoke the last active Admin"},
			}}
		}
	}

	res, err := r.store.Update(ctx, domain.TablePermissions,
		store.Filters{"Email": email, "Role": string(role), "Active": activeYes},
		store.Row{"Active": activeNo})
	if err != nil {
		if domain.IsRetryable(err) {
			return domain.ErrBusy
		}
		return &domain.BackendError{Op: "revoke role", Err: err}
	}
	if res.RowsUpdated == 0 {
		return domain.ErrNotFound
	}
	r.log.Info("role revoked", "email", email, "role", role)
	return nil
}

// Grants lists every grant, active and revoked.
func (r *Resolver) Grants(ctx context.Context) ([]Grant, error) {
	rows, err := r.store.Find(ctx, domain.TablePermissions, store.Filters{}, nil)
	if err != nil {
		return nil, &domain.BackendError{Op: "list grants", Err: err}
	}
	grants := make([]Grant, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, Grant{
			Email:  rowString(row, "Email"),
			Role:   domain.Role(rowString(row, "Role")),
			Sector: rowString(row, "Sector"),
			Active: rowString(row, "Active") == activeYes,
		})
	}
	return grants, nil
}

func lastAdminIs(activeAdmins []store.Row, email string) bool {
	if len(activeAdmins) != 1 {
		return false
	}
	return strings.EqualFold(rowString(activeAdmins[0], "Email"), email)
}

func rowString(row store.Row, field string) string {
	s, _ := row[field].(string)
	return s
}
