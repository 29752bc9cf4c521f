package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^[ ]*[_\-=]{3,}[ ]*$`)
)

const (
	aggressiveRatio   = 0.45
	conservativeRatio = 0.35
	minLetterRun      = 4
)

// Normalize cleans OCR and layout noise while keeping line structure.
// Character-spaced words ("L o v a b l e") are collapsed according to how
// dense the spaces on a line are. The result is a fixed point:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return s
	}
	// Every pass after the first either shrinks the text or changes nothing.
	for {
		next := normalizePass(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizePass(s string) string {
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		line = collapseSpacedLetters(line)
		lines[i] = reMultiSpace.ReplaceAllString(line, " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseSpacedLetters joins single characters split apart by OCR.
func collapseSpacedLetters(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(trimmed) < 2*minLetterRun-1 {
		return line
	}
	ratio := float64(strings.Count(trimmed, " ")) / float64(utf8.RuneCountInString(trimmed))
	indent := line[:len(line)-len(trimmed)]

	switch {
	case ratio >= aggressiveRatio:
		// Double spaces separate words; single spaces separate letters.
		groups := reMultiSpace.Split(trimmed, -1)
		for i, g := range groups {
			if toks := strings.Split(g, " "); len(toks) > 1 && allSingleRunes(toks) {
				groups[i] = strings.Join(toks, "")
			}
		}
		return indent + strings.Join(groups, " ")
	case ratio >= conservativeRatio:
		return indent + joinLetterRuns(trimmed)
	}
	return line
}

// joinLetterRuns joins runs of at least minLetterRun lone letters.
func joinLetterRuns(s string) string {
	toks := strings.Split(s, " ")
	out := make([]string, 0, len(toks))
	for i := 0; i < len(toks); {
		j := i
		for j < len(toks) && isLoneLetter(toks[j]) {
			j++
		}
		if j-i >= minLetterRun {
			out = append(out, strings.Join(toks[i:j], ""))
			i = j
			continue
		}
		if j == i {
			j++
		}
		out = append(out, toks[i:j]...)
		i = j
	}
	return strings.Join(out, " ")
}

func allSingleRunes(toks []string) bool {
	for _, t := range toks {
		if utf8.RuneCountInString(t) != 1 {
			return false
		}
	}
	return true
}

func isLoneLetter(t string) bool {
	return len(t) == 1 && (t[0] >= 'a' && t[0] <= 'z' || t[0] >= 'A' && t[0] <= 'Z')
}
