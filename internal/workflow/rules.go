package workflow

import (
	"strings"

	"ncrtrack/internal/domain"
)

// validTransitions is the forward-only status graph. Finalized is terminal.
var validTransitions = map[domain.Status][]domain.Status{
	domain.StatusIntake:        {domain.StatusQualityReview, domain.StatusFinalized},
	domain.StatusQualityReview: {domain.StatusActionReview, domain.StatusFinalized},
	domain.StatusActionReview:  {domain.StatusFinalized},
	domain.StatusFinalized:     {},
}

// requiredForStatus lists the fields that must be filled before a record may
// enter each status, evaluated against the merged current+patch values.
var requiredForStatus = map[domain.Status][]string{
	domain.StatusQualityReview: {"Analysis Date", "Risk", "Failure Type"},
	domain.StatusActionReview:  {"Action Plan", "Action Owner"},
	domain.StatusFinalized:     {domain.FieldActionStatus},
}

// deriveStatus applies the progression rules in precedence order:
//
//  1. report type marked "does not apply" finalizes from any state;
//  2. corrective action completed while in Action Review finalizes;
//  3. a Leadership edit moves Quality Review forward to Action Review;
//  4. a Quality edit moves Intake forward to Quality Review;
//  5. otherwise the status stays.
func deriveStatus(current domain.Status, touched map[domain.Section]bool, merged func(string) string) domain.Status {
	if containsFold(merged(domain.FieldReportType), domain.ValueDoesNotApply) {
		return domain.StatusFinalized
	}
	if current == domain.StatusActionReview &&
		containsFold(merged(domain.FieldActionStatus), domain.ValueActionCompleted) {
		return domain.StatusFinalized
	}
	if current == domain.StatusQualityReview && touched[domain.SectionLeadership] {
		return domain.StatusActionReview
	}
	if current == domain.StatusIntake && touched[domain.SectionQuality] {
		return domain.StatusQualityReview
	}
	return current
}

// validateTransition checks the edge exists and the target status's required
// fields are filled. A record finalized because its report type does not
// apply is exempt from the corrective-action requirement: there is no action
// to track.
func validateTransition(from, to domain.Status, merged func(string) string) error {
	allowed := false
	for _, next := range validTransitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return &domain.ValidationError{Violations: []domain.Violation{
			{Field: domain.FieldStatus, Rule: "cannot move from " + string(from) + " to " + string(to)},
		}}
	}

	doesNotApply := containsFold(merged(domain.FieldReportType), domain.ValueDoesNotApply)

	var violations []domain.Violation
	for _, field := range requiredForStatus[to] {
		if to == domain.StatusFinalized && field == domain.FieldActionStatus && doesNotApply {
			continue
		}
		if merged(field) == "" {
			violations = append(violations, domain.Violation{
				Field: field, Rule: "required to enter " + string(to),
			})
		}
	}
	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
