package dictation

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Language codes understood by the dictation pipeline.
const (
	LangEnglish = "eng"
	LangChinese = "zho"
	LangAuto    = "auto"
)

var stripControls = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}))

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Chinese, lingua.Japanese, lingua.Korean).
		Build()
})

// Normalize cleans transcript text for display and injection: NFC, control
// characters removed, whitespace collapsed, and full-width ASCII folded for
// languages that do not use CJK punctuation.
func Normalize(text, lang string) string {
	s, _, err := transform.String(transform.Chain(norm.NFC, stripControls), text)
	if err != nil {
		s = text
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	if !usesCJKPunctuation(s, lang) {
		if folded, _, err := transform.String(width.Narrow, s); err == nil {
			s = folded
		}
	}
	return s
}

func usesCJKPunctuation(text, lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LangChinese:
		return true
	case LangEnglish:
		return false
	}
	if !ContainsCJK(text) {
		return false
	}
	detected, ok := detector().DetectLanguageOf(text)
	if !ok {
		return true
	}
	switch detected {
	case lingua.Chinese, lingua.Japanese, lingua.Korean:
		return true
	}
	return false
}

// IsCJK reports whether r is a CJK ideograph or CJK symbol.
func IsCJK(r rune) bool {
	switch {
	case r >= 0x3400 && r <= 0x4DBF,
		r >= 0x4E00 && r <= 0x9FFF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0x2CEB0 && r <= 0x2EBEF,
		r >= 0x3000 && r <= 0x303F:
		return true
	}
	return false
}

// ContainsCJK reports whether any rune in s is CJK.
func ContainsCJK(s string) bool {
	return strings.ContainsFunc(s, IsCJK)
}

func isTerminalPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', '，', '。', '！', '？':
		return true
	}
	return false
}

func isClosingWrapper(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '}':
		return true
	}
	return false
}

func isJoinPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', '，', '。', '！', '？', '；', '：', '、':
		return true
	}
	return false
}

// hasTerminalPunctuation looks past closing quotes and brackets.
func hasTerminalPunctuation(s string) bool {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if !isClosingWrapper(r) {
			return isTerminalPunct(r)
		}
		s = s[:len(s)-size]
	}
	return false
}

// AppendTerminalPunctuation trims text and ends it with "." (or "，" when
// it contains CJK) unless it already ends in terminal punctuation.
func AppendTerminalPunctuation(text string) string {
	s := strings.TrimSpace(text)
	if s == "" || hasTerminalPunctuation(s) {
		return s
	}
	if ContainsCJK(s) {
		return s + "，"
	}
	return s + "."
}

// ResolveCommittedPunctuationDelta returns what still has to be typed after
// live partials already put injected on screen. Only punctuation is ever
// returned; word changes between the partial and the commit are not retyped.
func ResolveCommittedPunctuationDelta(committed, injected string) string {
	c := strings.TrimSpace(committed)
	i := strings.TrimSpace(injected)
	if c == "" || i == "" || c == i {
		return ""
	}

	if delta, ok := strings.CutPrefix(c, i); ok {
		onlyPunct := !strings.ContainsFunc(strings.TrimSpace(delta), func(r rune) bool {
			return !isTerminalPunct(r) && !isClosingWrapper(r)
		})
		if onlyPunct {
			return delta
		}
	}

	if hasTerminalPunctuation(i) {
		return ""
	}
	return terminalPunctuationSuffix(c)
}

// terminalPunctuationSuffix returns the last terminal mark of s plus any
// closing wrappers after it.
func terminalPunctuationSuffix(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	end := len(s)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if end-size == 0 || !isClosingWrapper(r) {
			break
		}
		end -= size
	}
	r, size := utf8.DecodeLastRuneInString(s[:end])
	if !isTerminalPunct(r) {
		return ""
	}
	return s[end-size:]
}

// AppendPending appends a committed segment to the clipboard buffer. Latin
// words are space-joined; CJK text and full-width punctuation join directly.
// Whitespace trailing the segment is kept.
func AppendPending(pending, segment string) string {
	seg := strings.TrimLeftFunc(segment, unicode.IsSpace)
	if strings.TrimSpace(seg) == "" {
		return pending
	}
	if pending == "" {
		return seg
	}

	prev, _ := utf8.DecodeLastRuneInString(pending)
	next, _ := utf8.DecodeRuneInString(seg)
	if !unicode.IsSpace(prev) && needsSeparator(prev, next) {
		pending += " "
	}
	return pending + seg
}

// needsSeparator reports whether a space belongs between prev and next.
// Full-width punctuation and CJK join directly; ASCII punctuation is
// followed by a space like any Latin word.
func needsSeparator(prev, next rune) bool {
	if IsCJK(prev) || IsCJK(next) || isJoinPunct(next) {
		return false
	}
	return !isJoinPunct(prev) || prev <= unicode.MaxASCII
}

// commonPrefixRunes counts the leading runes a and b share.
func commonPrefixRunes(a, b string) int {
	n := 0
	for a != "" && b != "" {
		ra, sa := utf8.DecodeRuneInString(a)
		rb, sb := utf8.DecodeRuneInString(b)
		if ra != rb {
			break
		}
		n++
		a, b = a[sa:], b[sb:]
	}
	return n
}

// suffixFromRune returns s without its first n runes.
func suffixFromRune(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}
