package service

import (
	"testing"

	leadsrepo "prime_crm_backend/internal/leads/repository"
	"prime_crm_backend/internal/routing/repository"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func testLead() leadsrepo.Lead {
	return leadsrepo.Lead{
		Language:     "en",
		LeadSource:   "website",
		Segment:      "Hot",
		PageType:     strPtr("landing"),
		PageSlug:     strPtr("marbella-villas"),
		BudgetRange:  strPtr("1m-2m"),
		Timeframe:    strPtr("immediate"),
		PropertyType: []string{"villa", "penthouse"},
	}
}

func TestFindMatchingRule_FirstMatchWins(t *testing.T) {
	agentA := uuid.New()
	agentB := uuid.New()
	rules := []repository.Rule{
		{RuleName: "hot english", MatchLanguage: []string{"en"}, MatchLeadSegment: []string{"Hot"}, AssignToAgentID: agentA},
		{RuleName: "any english", MatchLanguage: []string{"en"}, AssignToAgentID: agentB},
	}

	match := FindMatchingRule(rules, testLead())
	if match == nil {
		t.Fatal("expected a matching rule")
	}
	if match.AssignToAgentID != agentA {
		t.Fatalf("expected first rule to win, got %q", match.RuleName)
	}
}

func TestFindMatchingRule_NoMatchReturnsNil(t *testing.T) {
	rules := []repository.Rule{
		{RuleName: "german only", MatchLanguage: []string{"de"}},
	}

	if match := FindMatchingRule(rules, testLead()); match != nil {
		t.Fatalf("expected no match, got %q", match.RuleName)
	}
}

func TestRuleMatches_EmptyRuleIsWildcard(t *testing.T) {
	if !ruleMatches(repository.Rule{}, testLead()) {
		t.Fatal("rule with no constraints should match every lead")
	}
}

func TestRuleMatches_LanguageIsCaseInsensitive(t *testing.T) {
	rule := repository.Rule{MatchLanguage: []string{"EN"}}
	if !ruleMatches(rule, testLead()) {
		t.Fatal("language match should be case insensitive")
	}
}

func TestRuleMatches_PageTypeOnlyConstrainedWhenPresent(t *testing.T) {
	rule := repository.Rule{MatchPageType: []string{"landing"}}

	lead := testLead()
	lead.PageType = nil
	if !ruleMatches(rule, lead) {
		t.Fatal("lead without page type should still match a page-scoped rule")
	}

	lead.PageType = strPtr("blog")
	if ruleMatches(rule, lead) {
		t.Fatal("lead with a different page type should not match")
	}
}

func TestRuleMatches_BudgetIsSubstring(t *testing.T) {
	rule := repository.Rule{MatchBudgetRange: []string{"2m"}}
	if !ruleMatches(rule, testLead()) {
		t.Fatal("budget fragment should match the lead's free-text range")
	}

	lead := testLead()
	lead.BudgetRange = nil
	if ruleMatches(rule, lead) {
		t.Fatal("budget-constrained rule should not match a lead without a budget")
	}
}

func TestRuleMatches_PropertyTypeIntersects(t *testing.T) {
	rule := repository.Rule{MatchPropertyType: []string{"penthouse", "apartment"}}
	if !ruleMatches(rule, testLead()) {
		t.Fatal("any overlapping property type should match")
	}

	rule.MatchPropertyType = []string{"townhouse"}
	if ruleMatches(rule, testLead()) {
		t.Fatal("disjoint property types should not match")
	}
}

func TestRuleMatches_TimeframeRequiresLeadValue(t *testing.T) {
	rule := repository.Rule{MatchTimeframe: []string{"immediate"}}
	if !ruleMatches(rule, testLead()) {
		t.Fatal("expected timeframe match")
	}

	lead := testLead()
	lead.Timeframe = nil
	if ruleMatches(rule, lead) {
		t.Fatal("timeframe-constrained rule should not match a lead without one")
	}
}
