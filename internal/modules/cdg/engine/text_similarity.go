package engine

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "are": true, "was": true,
	"that": true, "this": true, "our": true, "you": true, "your": true, "want": true,
	"would": true, "like": true, "from": true, "have": true, "has": true, "will": true,
	"should": true, "can": true, "not": true, "but": true, "into": true, "about": true,
	"a": true, "an": true, "to": true, "of": true, "in": true, "on": true, "at": true,
	"is": true, "be": true, "we": true, "i": true, "my": true, "it": true, "or": true,
	"我们": true, "一个": true, "可以": true, "需要": true, "希望": true,
}

// tokenize mixes whole words (plus 3-grams for long words) with CJK bigrams so
// statements in different scripts can still overlap.
func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	var word []rune
	var han []rune
	flushWord := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		if !stopwords[w] && len(word) > 1 {
			out[w] = true
		}
		if len(word) > 6 {
			for i := 0; i+3 <= len(word); i++ {
				out["#"+string(word[i:i+3])] = true
			}
		}
		word = word[:0]
	}
	flushHan := func() {
		switch {
		case len(han) == 1:
			out[string(han)] = true
		case len(han) > 1:
			for i := 0; i+2 <= len(han); i++ {
				bg := string(han[i : i+2])
				if !stopwords[bg] {
					out[bg] = true
				}
			}
		}
		han = han[:0]
	}
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// textSimilarity caches token sets per node id for one rebalance.
type textSimilarity struct {
	w     *workGraph
	cache map[string]map[string]bool
}

func newTextSimilarity(w *workGraph) *textSimilarity {
	return &textSimilarity{w: w, cache: map[string]map[string]bool{}}
}

func (t *textSimilarity) tokens(id string) map[string]bool {
	if toks, ok := t.cache[id]; ok {
		return toks
	}
	n := t.w.node(id)
	if n == nil {
		return nil
	}
	toks := tokenize(n.Statement)
	t.cache[id] = toks
	return toks
}

func (t *textSimilarity) between(a, b string) float64 {
	return jaccard(t.tokens(a), t.tokens(b))
}
