package textview

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/audio-report-client/internal/core/report"
)

// Render produces the plain-text report, one block per section separated by
// a blank line.
func Render(f report.Fragment) string {
	blocks := make([]string, 0, len(f.Sections))
	for _, section := range f.Sections {
		if block := renderSection(section); block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func renderSection(s report.Section) string {
	var b strings.Builder
	switch s.Kind {
	case report.SectionAudioFile:
		b.WriteString(Literal(s.Title) + ": " + Literal(s.Text))
	case report.SectionPlaceholder:
		b.WriteString(Literal(s.Text))
	case report.SectionDialogue:
		b.WriteString(Literal(s.Title))
		for _, line := range s.Lines {
			b.WriteString("\n" + Literal(line.Label()) + ": " + Literal(line.Text))
		}
	case report.SectionClassified:
		b.WriteString(Literal(s.Title))
		for _, item := range s.Items {
			b.WriteString("\n- " + Literal(item))
		}
	default:
		if s.Title != "" {
			b.WriteString(Literal(s.Title) + "\n")
		}
		b.WriteString(Literal(s.Text))
	}
	return b.String()
}

// Literal makes backend text safe to print on a terminal: control runes
// other than newline and tab are written as Go escapes, so ESC, BEL and
// C1 bytes cannot start a terminal control sequence.
func Literal(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if !isControl(r) {
			b.WriteRune(r)
			continue
		}
		quoted := strconv.QuoteRuneToASCII(r)
		b.WriteString(quoted[1 : len(quoted)-1])
	}
	return b.String()
}

func isControl(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.IsControl(r)
}
