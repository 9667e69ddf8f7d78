package schema

import (
	"context"

	"ncrtrack/internal/domain"
	"ncrtrack/internal/store"
)

// Default configuration installed on first boot. Mirrors the form the quality
// team runs in production; admins reshape it through the config endpoints.

var defaultSections = []Section{
	{Name: string(domain.SectionIntake), Description: "Occurrence intake", Rank: 1, Active: true},
	{Name: string(domain.SectionQuality), Description: "Quality analysis", Rank: 2, Active: true},
	{Name: string(domain.SectionLeadership), Description: "Action plan and follow-up", Rank: 3, Active: true},
}

var defaultFields = []Field{
	{Section: string(domain.SectionIntake), Name: "Date", Type: "date", Required: true, Rank: 1, Active: true},
	{Section: string(domain.SectionIntake), Name: "Customer", Type: "input", Required: true, Rank: 2, Active: true},
	{Section: string(domain.SectionIntake), Name: "Description", Type: "textarea", Required: true, Rank: 3, Active: true},
	{Section: string(domain.SectionIntake), Name: "Sector", Type: "select", Required: true, Rank: 4, Active: true, List: "Sectors"},
	{Section: string(domain.SectionIntake), Name: domain.FieldReportType, Type: "select", Required: true, Rank: 5, Active: true, List: "Report Types"},

	{Section: string(domain.SectionQuality), Name: "Analysis Date", Type: "date", Required: false, Rank: 1, Active: true},
	{Section: string(domain.SectionQuality), Name: "Risk", Type: "select", Required: false, Rank: 2, Active: true, List: "Risk Levels"},
	{Section: string(domain.SectionQuality), Name: "Failure Type", Type: "select", Required: false, Rank: 3, Active: true, List: "Failure Types"},
	{Section: string(domain.SectionQuality), Name: "Root Cause Analysis", Type: "textarea", Required: false, Rank: 4, Active: true},
	{Section: string(domain.SectionQuality), Name: "Immediate Corrective Action", Type: "textarea", Required: false, Rank: 5, Active: true},

	{Section: string(domain.SectionLeadership), Name: "Action Plan", Type: "textarea", Required: false, Rank: 1, Active: true},
	{Section: string(domain.SectionLeadership), Name: domain.FieldActionStatus, Type: "select", Required: false, Rank: 2, Active: true, List: "Action Statuses"},
	{Section: string(domain.SectionLeadership), Name: "Execution Deadline", Type: "date", Required: false, Rank: 3, Active: true},
	{Section: string(domain.SectionLeadership), Name: "Action Completion Date", Type: "date", Required: false, Rank: 4, Active: true},
	{Section: string(domain.SectionLeadership), Name: "Action Owner", Type: "input", Required: false, Rank: 5, Active: true},
}

var defaultLists = map[string][]string{
	"Sectors":         {"Production", "Logistics", "Purchasing", "Engineering", "Commercial"},
	"Report Types":    {"Customer complaint", "Internal failure", "Supplier failure", "Does not apply"},
	"Risk Levels":     {"Low", "Medium", "High", "Critical"},
	"Failure Types":   {"Process", "Material", "Equipment", "Human", "Method"},
	"Action Statuses": {"Not started", "In progress", "Completed", "Cancelled"},
}

func (m *Manager) seed(ctx context.Context) error {
	sectionRows := make([]store.Row, 0, len(defaultSections))
	for _, s := range defaultSections {
		sectionRows = append(sectionRows, s.toRow())
	}
	if _, err := m.store.Insert(ctx, domain.TableSections, sectionRows...); err != nil {
		return err
	}

	fieldRows := make([]store.Row, 0, len(defaultFields))
	for _, f := range defaultFields {
		fieldRows = append(fieldRows, f.toRow())
	}
	if _, err := m.store.Insert(ctx, domain.TableFields, fieldRows...); err != nil {
		return err
	}

	for name, items := range defaultLists {
		if err := m.SaveList(ctx, name, items); err != nil {
			return err
		}
	}
	return nil
}
