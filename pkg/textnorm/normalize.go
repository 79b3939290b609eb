// Package textnorm turns raw comment text into the stemmed token stream the
// sentiment scorer consumes.
package textnorm

import (
	"fmt"
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"github.com/neurosnap/sentences"
	sentenceseng "github.com/neurosnap/sentences/english"
)

// maxStemPasses bounds the fixed-point stemming loop.
const maxStemPasses = 8

// Normalizer splits text into sentences and normalizes each one.
// It is safe for concurrent use.
type Normalizer struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// New loads the English sentence model. Call once at startup.
func New() (*Normalizer, error) {
	tok, err := sentenceseng.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}
	return &Normalizer{tokenizer: tok}, nil
}

// Normalize cleans, filters and stems every sentence of text and joins the
// results with single spaces. Empty input yields an empty string.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var parts []string
	for _, s := range n.tokenizer.Tokenize(text) {
		if norm := NormalizeSentence(s.Text); norm != "" {
			parts = append(parts, norm)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeSentence applies the per-sentence steps: strip everything but
// ASCII letters and whitespace (any Unicode space separates words), lowercase, drop stop words, stem.
func NormalizeSentence(sentence string) string {
	cleaned := strings.ToLower(stripNonLetters(sentence))

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if IsStopWord(tok) {
			continue
		}
		stem := Stem(tok)
		if stem == "" || IsStopWord(stem) {
			continue
		}
		tokens = append(tokens, stem)
	}
	return strings.Join(tokens, " ")
}

// irregularStems pins words whose Porter stem is known to be unhelpful.
var irregularStems = map[string]string{
	"sky":      "sky",
	"skies":    "sky",
	"dying":    "die",
	"lying":    "lie",
	"tying":    "tie",
	"news":     "news",
	"innings":  "inning",
	"inning":   "inning",
	"outings":  "outing",
	"outing":   "outing",
	"cannings": "canning",
	"canning":  "canning",
	"howe":     "howe",
	"proceed":  "proceed",
	"exceed":   "exceed",
	"succeed":  "succeed",
}

// Stem reduces word to its Porter stem, reapplying the stemmer until the
// result no longer changes. Words of two letters or fewer are kept as is.
func Stem(word string) string {
	if len(word) <= 2 {
		return word
	}
	if s, ok := irregularStems[word]; ok {
		return s
	}

	stem := word
	for i := 0; i < maxStemPasses; i++ {
		next := porterstemmer.StemString(stem)
		if next == stem {
			break
		}
		stem = next
	}
	return stem
}

// stripNonLetters keeps ASCII letters and turns any Unicode whitespace into
// a plain space.
func stripNonLetters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return b.String()
}
