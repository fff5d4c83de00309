package triage

import "fmt"

// SuggestResponse drafts the reply to the customer. It points at the most
// relevant KB article when there is one.
func SuggestResponse(t *Ticket, b ContextBundle, d Decision) string {
	if len(b.KBArticles) > 0 {
		art := b.KBArticles[0]
		return fmt.Sprintf("Thank you for contacting support. Based on your issue regarding '%s', "+
			"we've categorized this as a %s issue with %s priority. "+
			"\n\nYou might find this helpful: %s (Article %s)"+
			"\n\nOur %s team will review your ticket shortly.",
			t.Subject, d.Category, d.Priority, art.Title, art.ID, d.AssignedTeam)
	}

	return fmt.Sprintf("Thank you for contacting support. We've received your ticket regarding '%s'. "+
		"This has been categorized as a %s issue with %s priority. "+
		"Our %s team will get back to you soon.",
		t.Subject, d.Category, d.Priority, d.AssignedTeam)
}
