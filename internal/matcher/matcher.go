// Package matcher compiles keywords into word-boundary-aware patterns and
// evaluates message text against them.
package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"highlight_bot/internal/model"
)

// Compiled is a keyword with its pre-built matching pattern. Compilation
// happens once at index-insertion time, not per message.
type Compiled struct {
	Keyword model.Keyword
	re      *regexp.Regexp

	boundStart bool
	boundEnd   bool
}

// Compile builds the matching pattern for a keyword. Sides that start or
// end with a word rune require a word boundary; sides that start or end
// with punctuation match literally. regexp's \b only understands ASCII,
// so boundaries are not part of the pattern: they are verified against
// the runes adjacent to each occurrence at match time.
func Compile(kw model.Keyword) (*Compiled, error) {
	pattern := strings.TrimSpace(kw.Pattern)
	if pattern == "" {
		return nil, fmt.Errorf("keyword %d: empty pattern", kw.ID)
	}

	expr := regexp.QuoteMeta(pattern)
	if !kw.CaseSensitive {
		expr = `(?i)` + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("keyword %d: compile pattern: %w", kw.ID, err)
	}

	first, _ := utf8.DecodeRuneInString(pattern)
	last, _ := utf8.DecodeLastRuneInString(pattern)
	return &Compiled{
		Keyword:    kw,
		re:         re,
		boundStart: isWordRune(first),
		boundEnd:   isWordRune(last),
	}, nil
}

// find returns the first occurrence of the pattern whose word-rune-edged
// sides are not glued to another word rune. Rejected occurrences advance
// the search by one rune so an overlapping valid one is still found.
func (c *Compiled) find(content string) (Span, bool) {
	for offset := 0; offset <= len(content); {
		loc := c.re.FindStringIndex(content[offset:])
		if loc == nil {
			return Span{}, false
		}
		start, end := offset+loc[0], offset+loc[1]
		if c.boundaryOK(content, start, end) {
			return Span{Start: start, End: end}, true
		}
		_, size := utf8.DecodeRuneInString(content[start:])
		offset = start + size
	}
	return Span{}, false
}

func (c *Compiled) boundaryOK(content string, start, end int) bool {
	if c.boundStart && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(content[:start]); isWordRune(r) {
			return false
		}
	}
	if c.boundEnd && end < len(content) {
		if r, _ := utf8.DecodeRuneInString(content[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// Span is the byte range of a match within the message content.
type Span struct {
	Start int
	End   int
}

// KeywordMatch is a single keyword that matched, with the first occurrence.
type KeywordMatch struct {
	Keyword model.Keyword
	Span    Span
}

// OwnerMatches collects every keyword of one owner that matched a message.
// One entry per owner yields at most one notification per message.
type OwnerMatches struct {
	OwnerID int64
	Matches []KeywordMatch
}

// Match evaluates the message content against all compiled keywords and
// returns the matches grouped by owner, ordered by owner ID. Empty or
// whitespace-only content never matches.
func Match(content string, keywords []*Compiled) []OwnerMatches {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	byOwner := make(map[int64][]KeywordMatch)
	for _, ck := range keywords {
		span, ok := ck.find(content)
		if !ok {
			continue
		}
		byOwner[ck.Keyword.UserID] = append(byOwner[ck.Keyword.UserID], KeywordMatch{
			Keyword: ck.Keyword,
			Span:    span,
		})
	}
	if len(byOwner) == 0 {
		return nil
	}

	owners := make([]OwnerMatches, 0, len(byOwner))
	for ownerID, matches := range byOwner {
		owners = append(owners, OwnerMatches{OwnerID: ownerID, Matches: matches})
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].OwnerID < owners[j].OwnerID })
	return owners
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
