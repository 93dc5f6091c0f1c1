package textnorm

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMemoSize = 1000

// Normalizer canonicalizes transcription text into a stable cache and debounce key.
// Recognizers re-emit the same final fragment often, so results are memoized.
type Normalizer struct {
	memo *lru.Cache[string, string]
}

func New(memoSize int) (*Normalizer, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, err
	}
	return &Normalizer{memo: memo}, nil
}

// Normalize lower-cases text, collapses whitespace runs to a single space and trims the ends.
func (n *Normalizer) Normalize(text string) string {
	if n == nil || n.memo == nil {
		return Normalize(text)
	}
	if v, ok := n.memo.Get(text); ok {
		return v
	}
	v := Normalize(text)
	n.memo.Add(text, v)
	return v
}

func (n *Normalizer) MemoLen() int {
	if n == nil || n.memo == nil {
		return 0
	}
	return n.memo.Len()
}

// Normalize is the unmemoized form.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
