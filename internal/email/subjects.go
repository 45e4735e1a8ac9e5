package email

const (
	subjectNewLeadFmt        = "New %s priority lead: %s"
	subjectRuleAssignedFmt   = "Lead assigned to you: %s"
	subjectEscalationFmt     = "Lead escalated (round %d): %s"
	subjectAdminFallbackFmt  = "URGENT: unclaimed lead needs attention: %s"
	subjectClaimReminderFmt  = "Reminder %d: claim window closing for %s"
	subjectClaimSLABreachFmt = "SLA alert: lead unclaimed for %d minutes: %s"
	subjectSLABreachFmt      = "SLA alert: no first action on %s"
	subjectLeadReassignedFmt = "Lead reassigned to you: %s"
)
