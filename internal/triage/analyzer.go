package triage

import "strings"

// Analyzer derives sentiment and urgency signals from ticket text.
type Analyzer struct {
	vocab *Vocabulary
}

// NewAnalyzer creates an Analyzer. A nil vocabulary uses DefaultVocabulary.
func NewAnalyzer(vocab *Vocabulary) *Analyzer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Analyzer{vocab: vocab}
}

// Analyze scans subject and description. Missing text is treated as empty and
// always yields a result.
func (a *Analyzer) Analyze(subject, description string) AnalysisResult {
	text := ticketText(subject, description)

	neg := countContained(text, a.vocab.NegativeWords)
	pos := countContained(text, a.vocab.PositiveWords)

	sentiment := SentimentNeutral
	switch {
	case neg > pos:
		sentiment = SentimentNegative
	case pos > 0:
		sentiment = SentimentPositive
	}

	keywords := make([]string, 0, len(a.vocab.UrgencyKeywords))
	for _, kw := range a.vocab.UrgencyKeywords {
		if strings.Contains(text, kw) {
			keywords = append(keywords, kw)
		}
	}

	return AnalysisResult{
		Sentiment:       sentiment,
		UrgencyKeywords: keywords,
		NegativeCount:   neg,
		PositiveCount:   pos,
	}
}

// ticketText is the lower-cased text all keyword matching runs against.
func ticketText(subject, description string) string {
	return strings.ToLower(subject + " " + description)
}

func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
