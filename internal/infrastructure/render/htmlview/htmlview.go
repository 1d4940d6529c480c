package htmlview

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/audio-report-client/internal/core/report"
)

// Render builds the report as an HTML fragment. Every payload string ends up
// in a text node, so html.Render escapes it.
func Render(f report.Fragment) (string, error) {
	root := element(atom.Div, "report-output")
	for _, section := range f.Sections {
		root.AppendChild(renderSection(section))
	}

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return b.String(), nil
}

// Document wraps the fragment in a minimal standalone page.
func Document(title string, f report.Fragment) (string, error) {
	body, err := Render(f)
	if err != nil {
		return "", err
	}
	var head strings.Builder
	titleNode := &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
	titleNode.AppendChild(text(title))
	if err := html.Render(&head, titleNode); err != nil {
		return "", fmt.Errorf("render html title: %w", err)
	}
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">" + head.String() + "</head><body>" + body + "</body></html>\n", nil
}

func renderSection(s report.Section) *html.Node {
	node := element(atom.Section, "report-"+strings.ReplaceAll(string(s.Kind), "_", "-"))

	switch s.Kind {
	case report.SectionPlaceholder:
		node.AppendChild(paragraph(s.Text))
		return node
	case report.SectionClassified:
		node.AppendChild(heading(atom.H5, s.Title))
		list := element(atom.Ul, "")
		for _, item := range s.Items {
			li := element(atom.Li, "")
			li.AppendChild(text(item))
			list.AppendChild(li)
		}
		node.AppendChild(list)
		return node
	}

	node.AppendChild(heading(atom.H4, s.Title))
	switch s.Kind {
	case report.SectionDialogue:
		container := element(atom.Div, "dialogue-output")
		for _, line := range s.Lines {
			container.AppendChild(dialogueTurn(line))
		}
		node.AppendChild(container)
	case report.SectionTranscript, report.SectionProcessedText:
		pre := element(atom.Pre, "")
		pre.AppendChild(text(s.Text))
		node.AppendChild(pre)
	default:
		node.AppendChild(paragraph(s.Text))
	}
	return node
}

func dialogueTurn(line report.Line) *html.Node {
	p := element(atom.P, "dialogue-turn")
	speaker := element(atom.Strong, "speaker-"+line.Speaker)
	speaker.Attr = append(speaker.Attr, html.Attribute{Key: "style", Val: "color: " + line.Color})
	speaker.AppendChild(text(line.Label() + ":"))
	p.AppendChild(speaker)
	p.AppendChild(text(" " + line.Text))
	return p
}

func heading(a atom.Atom, title string) *html.Node {
	h := element(a, "")
	h.AppendChild(text(title))
	return h
}

func paragraph(s string) *html.Node {
	p := element(atom.P, "")
	p.AppendChild(text(s))
	return p
}

func element(a atom.Atom, class string) *html.Node {
	node := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		node.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return node
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
