package schema

import (
	"strconv"

	"ncrtrack/internal/store"
)

// Section is a named, ordered, activatable grouping of fields. Ordering is a
// total order via Rank; ties keep insertion order.
type Section struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
	Active      bool   `json:"active"`
}

// Field is one configured record field. Each (Section, Name) pair is unique
// among active definitions.
type Field struct {
	Section     string `json:"section"`
	Name        string `json:"name"`
	Type        string `json:"type"` // input, textarea, select, date, number, label, file
	Required    bool   `json:"required"`
	Rank        int    `json:"rank"`
	Active      bool   `json:"active"`
	Pattern     string `json:"pattern"`
	List        string `json:"list"`
	Placeholder string `json:"placeholder"`
}

// Column layouts of the configuration tables.
var (
	sectionHeaders = []string{"Name", "Description", "Order", "Active"}
	fieldHeaders   = []string{"Section", "Field", "Type", "Required", "Order", "Active", "Pattern", "List", "Placeholder"}
	listHeaders    = []string{"List", "Item", "Position"}
)

const (
	activeYes = "Yes"
	activeNo  = "No"
)

func yesNo(b bool) string {
	if b {
		return activeYes
	}
	return activeNo
}

func parseRank(v any) int {
	s, _ := v.(string)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 999
}

func cell(row store.Row, field string) string {
	s, _ := row[field].(string)
	return s
}

func sectionFromRow(row store.Row) Section {
	return Section{
		Name:        cell(row, "Name"),
		Description: cell(row, "Description"),
		Rank:        parseRank(row["Order"]),
		Active:      cell(row, "Active") == activeYes,
	}
}

func (s Section) toRow() store.Row {
	return store.Row{
		"Name":        s.Name,
		"Description": s.Description,
		"Order":       strconv.Itoa(s.Rank),
		"Active":      yesNo(s.Active),
	}
}

func fieldFromRow(row store.Row) Field {
	return Field{
		Section:     cell(row, "Section"),
		Name:        cell(row, "Field"),
		Type:        cell(row, "Type"),
		Required:    cell(row, "Required") == activeYes,
		Rank:        parseRank(row["Order"]),
		Active:      cell(row, "Active") == activeYes,
		Pattern:     cell(row, "Pattern"),
		List:        cell(row, "List"),
		Placeholder: cell(row, "Placeholder"),
	}
}

func (f Field) toRow() store.Row {
	return store.Row{
		"Section":     f.Section,
		"Field":       f.Name,
		"Type":        f.Type,
		"Required":    yesNo(f.Required),
		"Order":       strconv.Itoa(f.Rank),
		"Active":      yesNo(f.Active),
		"Pattern":     f.Pattern,
		"List":        f.List,
		"Placeholder": f.Placeholder,
	}
}
