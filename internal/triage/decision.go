package triage

// Decider maps a ScoringResult onto the final routing decision.
type Decider struct {
	vocab *Vocabulary
}

// NewDecider creates a Decider. A nil vocabulary uses DefaultVocabulary.
func NewDecider(vocab *Vocabulary) *Decider {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Decider{vocab: vocab}
}

// PriorityFor walks the threshold ladder top-down. Scores below every step,
// including negative scores, are low.
func (d *Decider) PriorityFor(score int) Priority {
	for _, step := range d.vocab.PriorityLadder {
		if score >= step.MinScore {
			return step.Priority
		}
	}
	return PriorityLow
}

// NeedsReview reports whether a human must confirm the decision.
func (d *Decider) NeedsReview(confidence float64, p Priority) bool {
	return confidence < d.vocab.ReviewConfidenceThreshold || p == PriorityCritical
}

// Decide builds the Decision. Category, team and confidence carry through
// from scoring unchanged.
func (d *Decider) Decide(s ScoringResult, b ContextBundle) Decision {
	p := d.PriorityFor(s.PriorityScore)
	return Decision{
		Category:         s.PredictedCategory,
		Priority:         p,
		AssignedTeam:     s.RecommendedTeam,
		Confidence:       s.CategoryConfidence,
		NeedsHumanReview: d.NeedsReview(s.CategoryConfidence, p),
		Reasoning: Reasoning{
			PriorityFactors:    s.Factors,
			SimilarTicketsUsed: len(b.SimilarTickets),
			KBArticlesFound:    len(b.KBArticles),
		},
	}
}
