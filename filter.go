package listkit

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Fuzzy filter over a backing item list, producing transaction batches.
// Matching uses junegunn/fzf's algo package.
//
// query syntax:
//   "foo"     fuzzy subsequence match
//   "'foo"    exact substring match
//   "^foo"    prefix match
//   "foo$"    suffix match
//   "!foo"    negated fuzzy match
//   "a b"     AND — all space-separated terms must match

func init() {
	algo.Init("default")
}

var filterSlab = util.MakeSlab(100*1024, 2048)

// Query is a pre-parsed filter query. Parse once, score many.
type Query struct {
	terms []queryTerm
}

type termKind int

const (
	termFuzzy termKind = iota
	termExact
	termPrefix
	termSuffix
)

type queryTerm struct {
	patRunes      []rune
	kind          termKind
	negated       bool
	caseSensitive bool
}

// ParseQuery parses a raw query string into a reusable Query.
func ParseQuery(raw string) Query {
	var q Query
	for _, tok := range strings.Fields(raw) {
		q.terms = append(q.terms, parseTerm(tok))
	}
	return q
}

// Empty reports whether the query has no terms.
func (q *Query) Empty() bool {
	return len(q.terms) == 0
}

func parseTerm(tok string) queryTerm {
	t := queryTerm{kind: termFuzzy}

	if len(tok) > 1 && tok[0] == '!' {
		t.negated = true
		tok = tok[1:]
	}
	if len(tok) > 1 && tok[0] == '\'' {
		t.kind = termExact
		tok = tok[1:]
	} else if len(tok) > 1 && tok[0] == '^' {
		t.kind = termPrefix
		tok = tok[1:]
	} else if len(tok) > 1 && tok[len(tok)-1] == '$' {
		t.kind = termSuffix
		tok = tok[:len(tok)-1]
	}

	t.caseSensitive = hasUppercase(tok)
	if !t.caseSensitive {
		tok = strings.ToLower(tok)
	}
	t.patRunes = []rune(tok)
	return t
}

func hasUppercase(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsUpper(r) {
			return true
		}
		i += size
	}
	return false
}

// Match reports whether candidate satisfies every term of the query.
func (q *Query) Match(candidate string) bool {
	for i := range q.terms {
		if !q.terms[i].match(candidate) {
			return false
		}
	}
	return true
}

func (t *queryTerm) match(candidate string) bool {
	chars := util.ToChars([]byte(candidate))

	var algoFn func(bool, bool, bool, *util.Chars, []rune, bool, *util.Slab) (algo.Result, *[]int)
	switch t.kind {
	case termExact:
		algoFn = algo.ExactMatchNaive
	case termPrefix:
		algoFn = algo.PrefixMatch
	case termSuffix:
		algoFn = algo.SuffixMatch
	default:
		algoFn = algo.FuzzyMatchV2
	}

	result, _ := algoFn(t.caseSensitive, false, true, &chars, t.patRunes, false, filterSlab)
	matched := result.Start >= 0
	if t.negated {
		return !matched
	}
	return matched
}

// Filter maintains the mapping between a full backing list and the
// filtered subset currently shown in a ListView, and converts query
// changes into minimal delete/insert transaction batches.
type Filter struct {
	backing []Item
	key     func(Item) string
	shown   []int // backing indices currently in the view, ascending
}

// NewFilter wraps a backing list; key extracts the match text per item.
// The initial shown set is the whole backing list.
func NewFilter(backing []Item, key func(Item) string) *Filter {
	f := &Filter{backing: backing, key: key}
	f.shown = make([]int, len(backing))
	for i := range backing {
		f.shown[i] = i
	}
	return f
}

// Shown returns the backing indices currently shown.
func (f *Filter) Shown() []int {
	return append([]int(nil), f.shown...)
}

// Apply diffs the current shown set against the query's match set and
// returns the transaction that morphs one into the other. Deletes are in
// pre-transaction view coordinates, inserts in post-transaction ones,
// which is exactly what Transaction expects.
func (f *Filter) Apply(raw string) Transaction {
	q := ParseQuery(raw)
	want := make([]int, 0, len(f.backing))
	for i, item := range f.backing {
		if q.Empty() || q.Match(f.key(item)) {
			want = append(want, i)
		}
	}

	wantSet := make(map[int]struct{}, len(want))
	for _, b := range want {
		wantSet[b] = struct{}{}
	}
	haveSet := make(map[int]struct{}, len(f.shown))
	for _, b := range f.shown {
		haveSet[b] = struct{}{}
	}

	var tx Transaction
	for viewIdx, b := range f.shown {
		if _, keep := wantSet[b]; !keep {
			tx.Deletes = append(tx.Deletes, DeleteItem{Index: viewIdx})
		}
	}
	for viewIdx, b := range want {
		if _, had := haveSet[b]; !had {
			tx.Inserts = append(tx.Inserts, InsertItem{
				Index:         viewIdx,
				Item:          f.backing[b],
				PreviousIndex: -1,
			})
		}
	}
	f.shown = want
	return tx
}
