// Package corpus loads the document table the keyword matcher answers from.
package corpus

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/PabloGalante/lexcite/internal/domain"
)

//go:embed default.toml
var defaultCorpus string

type file struct {
	Intro       string         `toml:"intro"`
	Suggestions []string       `toml:"suggestions"`
	Fallback    string         `toml:"fallback"`
	Documents   []documentFile `toml:"documents"`
	Rules       []ruleFile     `toml:"rules"`
}

type documentFile struct {
	ID         string            `toml:"id"`
	Title      string            `toml:"title"`
	Locator    string            `toml:"locator"`
	Excerpt    string            `toml:"excerpt"`
	Paragraphs map[string]string `toml:"paragraphs"`
}

type ruleFile struct {
	Keywords  []string          `toml:"keywords"`
	Answer    string            `toml:"answer"`
	Citations []citationRefFile `toml:"citations"`
}

type citationRefFile struct {
	SourceID  string `toml:"source_id"`
	Paragraph string `toml:"paragraph"`
	Quote     string `toml:"quote"`
	Page      *int   `toml:"page"`
}

// Default returns the built-in corpus.
func Default() (domain.Corpus, error) {
	return Parse(defaultCorpus)
}

// Load reads a corpus from path, or the built-in one when path is empty.
func Load(path string) (domain.Corpus, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	c, err := Parse(string(data))
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("corpus %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a TOML corpus. Unknown keys are rejected so typos in a
// fixture do not silently drop rules.
func Parse(data string) (domain.Corpus, error) {
	var f file
	md, err := toml.Decode(data, &f)
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("decoding corpus: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return domain.Corpus{}, fmt.Errorf("unknown corpus keys: %v", undecoded)
	}

	c := domain.Corpus{
		Intro:       f.Intro,
		Suggestions: f.Suggestions,
		Fallback:    f.Fallback,
	}

	seen := make(map[string]bool, len(f.Documents))
	for _, d := range f.Documents {
		if d.ID == "" {
			return domain.Corpus{}, fmt.Errorf("document without id")
		}
		if seen[d.ID] {
			return domain.Corpus{}, fmt.Errorf("duplicate document %q", d.ID)
		}
		seen[d.ID] = true

		c.Documents = append(c.Documents, domain.Document{
			ID:         d.ID,
			Title:      d.Title,
			Locator:    d.Locator,
			Excerpt:    d.Excerpt,
			Paragraphs: d.Paragraphs,
		})
	}

	for _, r := range f.Rules {
		rule := domain.Rule{
			Keywords: r.Keywords,
			Answer:   r.Answer,
		}
		for _, ref := range r.Citations {
			rule.Citations = append(rule.Citations, domain.CitationRef{
				SourceID:  ref.SourceID,
				Paragraph: ref.Paragraph,
				Quote:     ref.Quote,
				Page:      ref.Page,
			})
		}
		c.Rules = append(c.Rules, rule)
	}

	return c, nil
}
