package domain

// Corpus is the fixed document table the keyword matcher answers from.
type Corpus struct {
	Intro       string
	Suggestions []string
	Fallback    string
	Documents   []Document
	Rules       []Rule
}

// Document is a source the viewer can open.
type Document struct {
	ID         string
	Title      string
	Locator    string
	Excerpt    string
	Paragraphs map[string]string // keyed by paragraph label, e.g. "Para 7"
}

// Rule maps a keyword set to a canned answer.
type Rule struct {
	Keywords  []string
	Answer    string
	Citations []CitationRef
}

// CitationRef names a passage by document and paragraph.
// Quote overrides the paragraph text when set.
type CitationRef struct {
	SourceID  string
	Paragraph string
	Quote     string
	Page      *int
}

// FindDocument returns the document with the given id.
func (c Corpus) FindDocument(id string) (Document, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}
