package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/audio-report-client/internal/core/domain"
)

const (
	NoDialoguePlaceholder = "Processing completed, but no dialogue data was returned."
	NoEntitiesText        = "No entities detected"
	UnknownEntityType     = "UNKNOWN"

	// processed_text starting with this marker is an error placeholder from the backend.
	processedTextErrorMarker = "["

	DefaultSpeakerColor = "#e1e1ff"
)

var SpeakerColors = map[string]string{
	"A":       "#00c7d9",
	"B":       "#ffab00",
	"C":       "#ff6b6b",
	"Unknown": "#cccccc",
}

func SpeakerColor(speaker string) string {
	if color, ok := SpeakerColors[speaker]; ok {
		return color
	}
	return DefaultSpeakerColor
}

// Render decodes a raw result payload and builds the report fragment. It
// fails only when raw is not a JSON object.
func Render(raw []byte) (Fragment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Fragment{}, domain.NewError(domain.ErrMalformedPayload, "result payload is empty", nil)
	}

	var payload domain.ResultPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Fragment{}, domain.NewError(domain.ErrMalformedPayload, "result payload is not a JSON object", err)
	}
	return RenderPayload(payload), nil
}

// RenderPayload applies the rendering policy to each optional section
// independently.
func RenderPayload(p domain.ResultPayload) Fragment {
	var f Fragment

	if name := strings.TrimSpace(p.AudioFilename); name != "" {
		f.Sections = append(f.Sections, Section{Kind: SectionAudioFile, Title: "Audio File", Text: name})
	}

	switch {
	case len(p.Dialogue) > 0:
		f.Sections = append(f.Sections, dialogueSection(p.Dialogue))
	case p.FullTranscript != "":
		f.Sections = append(f.Sections, Section{Kind: SectionTranscript, Title: "Full Transcript", Text: p.FullTranscript})
	default:
		f.Sections = append(f.Sections, Section{Kind: SectionPlaceholder, Text: NoDialoguePlaceholder})
	}

	f.Sections = append(f.Sections, entitiesSection(p.Entities))

	if len(p.Keywords) > 0 {
		f.Sections = append(f.Sections, keywordsSection(p.Keywords))
	}

	for _, category := range p.ClassifiedSentences {
		if len(category.Sentences) == 0 {
			continue
		}
		items := make([]string, len(category.Sentences))
		copy(items, category.Sentences)
		f.Sections = append(f.Sections, Section{Kind: SectionClassified, Title: category.Name, Items: items})
	}

	if p.ProcessedText != "" && !strings.HasPrefix(p.ProcessedText, processedTextErrorMarker) {
		f.Sections = append(f.Sections, Section{
			Kind:  SectionProcessedText,
			Title: "Preprocessed Text (for Analysis)",
			Text:  p.ProcessedText,
		})
	}

	return f
}

func dialogueSection(turns []domain.DialogueTurn) Section {
	lines := make([]Line, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, Line{
			Speaker: turn.Speaker,
			Color:   SpeakerColor(turn.Speaker),
			Text:    turn.Text,
		})
	}
	return Section{Kind: SectionDialogue, Title: "Conversation Dialogue", Lines: lines}
}

func entitiesSection(entities []domain.Entity) Section {
	section := Section{Kind: SectionEntities, Title: "Entities"}
	if len(entities) == 0 {
		section.Text = NoEntitiesText
		return section
	}
	parts := make([]string, 0, len(entities))
	for _, entity := range entities {
		entityType := strings.TrimSpace(entity.Type)
		if entityType == "" {
			entityType = UnknownEntityType
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", entity.Name, entityType))
	}
	section.Text = strings.Join(parts, ", ")
	section.Items = parts
	return section
}

func keywordsSection(keywords []domain.Keyword) Section {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", kw.Keyword, kw.Score))
	}
	return Section{Kind: SectionKeywords, Title: "Keywords", Text: strings.Join(parts, ", "), Items: parts}
}
