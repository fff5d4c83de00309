package triage

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Scorer turns analysis and context into a priority score, a category
// prediction and a team recommendation.
type Scorer struct {
	backend Backend
	vocab   *Vocabulary
	logger  log.Logger
	hooks   *Hooks
}

// NewScorer creates a Scorer. The backend is only used for team workload.
func NewScorer(backend Backend, vocab *Vocabulary, logger log.Logger, hooks *Hooks) *Scorer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scorer{backend: backend, vocab: vocab, logger: logger, hooks: hooks}
}

// Score computes the ScoringResult. Apart from team workload, which is read
// best-effort from the backend, it is a pure function of its inputs.
func (s *Scorer) Score(ctx context.Context, t *Ticket, a AnalysisResult, b ContextBundle) ScoringResult {
	category, confidence := s.PredictCategory(t, b.SimilarTickets)

	return ScoringResult{
		PriorityScore:      s.PriorityScore(a, b.CustomerHistory),
		PredictedCategory:  category,
		CategoryConfidence: confidence,
		RecommendedTeam:    s.vocab.TeamFor(category),
		TeamWorkload:       s.teamWorkload(ctx),
		Factors: Factors{
			UrgencyKeywords:      len(a.UrgencyKeywords),
			Sentiment:            a.Sentiment,
			CustomerPlan:         b.CustomerHistory.Plan,
			CustomerSatisfaction: b.CustomerHistory.SatisfactionScore,
		},
	}
}

// PriorityScore applies, in order: keyword base, sentiment adjustment, plan
// multiplier (truncated toward zero), low-satisfaction bonus, upper clamp.
// There is no lower clamp.
func (s *Scorer) PriorityScore(a AnalysisResult, h CustomerHistory) int {
	w := s.vocab.Scoring

	score := len(a.UrgencyKeywords) * w.KeywordWeight

	switch a.Sentiment {
	case SentimentNegative:
		score += w.NegativeBonus
	case SentimentPositive:
		score -= w.PositivePenalty
	}

	score = int(float64(score) * s.vocab.PlanMultiplier(h.Plan))

	if h.SatisfactionScore < w.LowSatisfactionThreshold {
		score += w.LowSatisfactionBonus
	}

	return min(score, w.MaxScore)
}

// PredictCategory votes across similar tickets; confidence is the winner's
// share of the vote. Ties go to the category seen first in relevance order.
// Without similar tickets it falls back to keyword matching at a fixed
// confidence.
func (s *Scorer) PredictCategory(t *Ticket, similar []SimilarTicket) (string, float64) {
	if len(similar) == 0 {
		return s.classifyByKeywords(t), s.vocab.FallbackConfidence
	}

	votes := make(map[string]int, len(similar))
	order := make([]string, 0, len(similar))
	for _, st := range similar {
		if _, seen := votes[st.Category]; !seen {
			order = append(order, st.Category)
		}
		votes[st.Category]++
	}

	winner := order[0]
	for _, c := range order[1:] {
		if votes[c] > votes[winner] {
			winner = c
		}
	}

	return winner, float64(votes[winner]) / float64(len(similar))
}

// classifyByKeywords picks the category with the most keyword hits, earliest
// category on ties, or the default category when nothing matches.
func (s *Scorer) classifyByKeywords(t *Ticket) string {
	text := ticketText(t.Subject, t.Description)

	best, bestHits := s.vocab.DefaultCategory, 0
	for _, c := range s.vocab.Categories {
		hits := 0
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = c.Name, hits
		}
	}
	return best
}

func (s *Scorer) teamWorkload(ctx context.Context) map[string]int {
	workload, err := s.backend.OpenCountByTeam(ctx)
	if err != nil {
		s.hooks.retrievalFault(SourceTeamWorkload)
		s.logger.Warn(ctx, "team workload unavailable", "error", err.Error())
		return map[string]int{}
	}
	if workload == nil {
		return map[string]int{}
	}
	return workload
}
