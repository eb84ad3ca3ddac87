// Package research answers legal questions from a fixed corpus by keyword lookup.
//
// KeywordMatcher is a placeholder for a real retrieval index. It sits behind
// domain.Matcher so a search or ranking component can replace it without
// touching the conversation layer.
package research

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/lexcite/internal/domain"
)

type rule struct {
	keywords  []string
	answer    string
	citations []domain.Citation
}

// KeywordMatcher returns the answer of the first rule whose keyword appears
// in the lower-cased query, or the corpus fallback.
type KeywordMatcher struct {
	rules    []rule
	fallback string
}

var _ domain.Matcher = (*KeywordMatcher)(nil)

// NewKeywordMatcher validates the corpus and resolves every citation
// reference against its document.
func NewKeywordMatcher(corpus domain.Corpus) (*KeywordMatcher, error) {
	if strings.TrimSpace(corpus.Fallback) == "" {
		return nil, errors.New("corpus fallback answer is empty")
	}

	docs := make(map[string]domain.Document, len(corpus.Documents))
	for _, d := range corpus.Documents {
		docs[d.ID] = d
	}

	m := &KeywordMatcher{fallback: corpus.Fallback}
	for i, r := range corpus.Rules {
		if strings.TrimSpace(r.Answer) == "" {
			return nil, fmt.Errorf("rule %d: answer is empty", i)
		}

		compiled := rule{answer: r.Answer}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(kw)
			if strings.TrimSpace(kw) == "" {
				continue
			}
			compiled.keywords = append(compiled.keywords, kw)
		}
		if len(compiled.keywords) == 0 {
			return nil, fmt.Errorf("rule %d: no keywords", i)
		}

		for j, ref := range r.Citations {
			c, err := resolve(docs, ref)
			if err != nil {
				return nil, fmt.Errorf("rule %d citation %d: %w", i, j, err)
			}
			compiled.citations = append(compiled.citations, c)
		}

		m.rules = append(m.rules, compiled)
	}

	return m, nil
}

func resolve(docs map[string]domain.Document, ref domain.CitationRef) (domain.Citation, error) {
	doc, ok := docs[ref.SourceID]
	if !ok {
		return domain.Citation{}, fmt.Errorf("unknown document %q", ref.SourceID)
	}

	quote := ref.Quote
	if quote == "" {
		text, ok := doc.Paragraphs[ref.Paragraph]
		if !ok {
			return domain.Citation{}, fmt.Errorf("document %q has no paragraph %q", ref.SourceID, ref.Paragraph)
		}
		quote = text
	}

	c := domain.Citation{
		QuotedText:     quote,
		SourceID:       doc.ID,
		SourceLocator:  doc.Locator,
		ParagraphLabel: ref.Paragraph,
		PageNumber:     ref.Page,
	}
	return c.Clone(), nil
}

// Match never fails. The returned citations are copies owned by the caller.
func (m *KeywordMatcher) Match(query string) domain.Answer {
	q := strings.ToLower(query)

	for _, r := range m.rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return domain.Answer{
					Text:      r.answer,
					Citations: domain.CloneCitations(r.citations),
				}
			}
		}
	}

	return domain.Answer{
		Text:      m.fallback,
		Citations: []domain.Citation{},
	}
}
