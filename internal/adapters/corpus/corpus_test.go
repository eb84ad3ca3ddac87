package corpus_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lexcite/internal/adapters/corpus"
)

func TestDefault(t *testing.T) {
	c, err := corpus.Default()
	require.NoError(t, err)

	require.Len(t, c.Documents, 1)
	doc := c.Documents[0]
	assert.Equal(t, "Dani_Devi_v_Pritam_Singh.pdf", doc.ID)
	assert.Equal(t, "/Dani Vs Pritam (Future 10 at age 54-55).pdf", doc.Locator)
	assert.Contains(t, doc.Paragraphs["Para 7"], "10% of annual income")

	require.Len(t, c.Rules, 1)
	assert.ElementsMatch(t,
		[]string{"future prospects", "self-employed", "54", "55", "motor vehicle", "compensation"},
		c.Rules[0].Keywords)
	require.Len(t, c.Rules[0].Citations, 1)
	require.NotNil(t, c.Rules[0].Citations[0].Page)
	assert.Equal(t, 1, *c.Rules[0].Citations[0].Page)

	assert.Equal(t, "Yes, under Section 166 of the Motor Vehicles Act, 1988, the claimants are entitled to an addition "+
		"for future prospects even when the deceased was self-employed and aged 54\u201355 years at the time of the accident. "+
		"In Dani Devi v. Pritam Singh, the Court held that 10% of the deceased's annual income should have been awarded "+
		"on account of future prospects.", c.Rules[0].Answer)
	assert.Equal(t, "I can help you research legal matters related to motor vehicle accidents, compensation claims, "+
		"and future prospects. Please ask me specific questions about the legal documents I have access to.", c.Fallback)
	assert.Equal(t, "I'm your AI legal research assistant. I can analyze legal documents and provide insights on "+
		"motor vehicle accident claims, compensation, and legal precedents.", c.Intro)
	assert.Equal(t, []string{
		"Are claimants entitled to future prospects when the deceased was self-employed and aged 54-55?",
	}, c.Suggestions)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := corpus.Load("")
	require.NoError(t, err)
	assert.Len(t, c.Documents, 1)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.toml")
	data := `
fallback = "nothing here"

[[documents]]
id = "doc"
locator = "/doc.pdf"

[[rules]]
keywords = ["tort"]
answer = "see doc"

[[rules.citations]]
source_id = "doc"
quote = "a quote"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := corpus.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nothing here", c.Fallback)
	require.Len(t, c.Rules, 1)
	assert.Equal(t, "a quote", c.Rules[0].Citations[0].Quote)
	assert.Nil(t, c.Rules[0].Citations[0].Page)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := corpus.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"syntax":       `fallback = `,
		"unknown key":  "fallback = \"x\"\nfallbak = \"y\"",
		"no id":        "[[documents]]\ntitle = \"t\"",
		"duplicate id": "[[documents]]\nid = \"a\"\n[[documents]]\nid = \"a\"",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := corpus.Parse(data)
			assert.Error(t, err)
		})
	}
}
