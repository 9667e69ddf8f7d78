package domain

// Status is the lifecycle stage of a non-conformance record. A record moves
// forward through the pipeline based on which sections were filled in, never
// backward.
type Status string

const (
	StatusIntake        Status = "Intake"
	StatusQualityReview Status = "Quality Review"
	StatusActionReview  Status = "Action Review"
	StatusFinalized     Status = "Finalized"

	// StatusDeleted marks a soft-deleted record. Rows are never physically
	// removed in normal operation.
	StatusDeleted Status = "Deleted"
)

// Section groups record fields under one edit permission.
type Section string

const (
	SectionIntake     Section = "Intake"
	SectionQuality    Section = "Quality"
	SectionLeadership Section = "Leadership"
)

// Level is an effective permission for one section. Merge precedence is
// edit > view > none.
type Level string

const (
	LevelEdit Level = "edit"
	LevelView Level = "view"
	LevelNone Level = "none"
)

// Role is a named permission bundle assignable to a user.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleIntake     Role = "Intake"
	RoleQuality    Role = "Quality"
	RoleLeadership Role = "Leadership"
	RoleViewer     Role = "Viewer"
)

// ValidRoles lists every assignable role.
var ValidRoles = []Role{RoleAdmin, RoleIntake, RoleQuality, RoleLeadership, RoleViewer}

// Logical table names used by the record store.
const (
	TableRecords     = "Records"
	TableSections    = "ConfigSections"
	TableFields      = "ConfigFields"
	TableLists       = "Lists"
	TablePermissions = "Permissions"
)

// Well-known record fields maintained by the system itself rather than by
// section configuration.
const (
	FieldNumber     = "NCR Number"
	FieldStatus     = "Status"
	FieldCreatedAt  = "Created At"
	FieldCreatedBy  = "Created By"
	FieldLastEdited = "Last Edited"
	FieldEditedBy   = "Edited By"
)

// Configured fields the workflow engine keys transitions on. Both are matched
// case-insensitively by substring, mirroring how operators fill the forms.
const (
	FieldReportType   = "Report Type"
	FieldActionStatus = "Corrective Action Status"

	ValueDoesNotApply    = "does not apply"
	ValueActionCompleted = "completed"
)

// SystemFields are the record columns that exist independently of field
// configuration. They head every record table.
var SystemFields = []string{
	FieldNumber, FieldStatus, FieldCreatedAt, FieldCreatedBy, FieldLastEdited, FieldEditedBy,
}
