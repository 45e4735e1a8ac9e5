package service

import (
	"strings"

	leadsrepo "prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/routing/repository"
)

// FindMatchingRule returns the first rule the lead satisfies. Rules arrive
// pre-sorted by priority, so first match wins.
func FindMatchingRule(rules []repository.Rule, lead leadsrepo.Lead) *repository.Rule {
	for i := range rules {
		if ruleMatches(rules[i], lead) {
			return &rules[i]
		}
	}
	return nil
}

// ruleMatches checks every populated match dimension; an empty list is a
// wildcard. Page type and slug are only constrained when the lead carries
// them, so a rule scoped to a landing page still catches direct submissions.
func ruleMatches(rule repository.Rule, lead leadsrepo.Lead) bool {
	if !matchesList(rule.MatchLanguage, lead.Language) {
		return false
	}
	if len(rule.MatchPageType) > 0 && lead.PageType != nil && !matchesList(rule.MatchPageType, *lead.PageType) {
		return false
	}
	if len(rule.MatchPageSlug) > 0 && lead.PageSlug != nil && !matchesList(rule.MatchPageSlug, *lead.PageSlug) {
		return false
	}
	if !matchesList(rule.MatchLeadSource, lead.LeadSource) {
		return false
	}
	if !matchesList(rule.MatchLeadSegment, lead.Segment) {
		return false
	}
	if len(rule.MatchBudgetRange) > 0 {
		if lead.BudgetRange == nil || !matchesSubstring(rule.MatchBudgetRange, *lead.BudgetRange) {
			return false
		}
	}
	if len(rule.MatchPropertyType) > 0 && !intersects(rule.MatchPropertyType, lead.PropertyType) {
		return false
	}
	if len(rule.MatchTimeframe) > 0 {
		if lead.Timeframe == nil || !matchesList(rule.MatchTimeframe, *lead.Timeframe) {
			return false
		}
	}
	return true
}

func matchesList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// matchesSubstring treats each list entry as a fragment to look for in the
// lead's free-text answer.
func matchesSubstring(list []string, value string) bool {
	v := strings.ToLower(value)
	for _, item := range list {
		if item != "" && strings.Contains(v, strings.ToLower(item)) {
			return true
		}
	}
	return false
}

func intersects(list, values []string) bool {
	for _, item := range list {
		for _, v := range values {
			if strings.EqualFold(item, v) {
				return true
			}
		}
	}
	return false
}
