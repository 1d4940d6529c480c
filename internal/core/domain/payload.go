package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ResultPayload is the analysis output of a finished job. Every section is
// optional; a section with the wrong JSON shape is dropped and its name is
// recorded in Malformed instead of failing the whole payload.
type ResultPayload struct {
	AudioFilename       string              `json:"audio_filename,omitempty"`
	FullTranscript      string              `json:"full_transcript,omitempty"`
	Dialogue            []DialogueTurn      `json:"dialogue,omitempty"`
	Entities            []Entity            `json:"entities,omitempty"`
	Keywords            []Keyword           `json:"keywords,omitempty"`
	ClassifiedSentences ClassifiedSentences `json:"classified_sentences,omitempty"`
	ProcessedText       string              `json:"processed_text,omitempty"`

	Malformed []string `json:"-"`
}

type DialogueTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Entity accepts both the ["name", "TYPE"] pair produced by the extraction
// pipeline and an explicit {"name": ..., "type": ...} object.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("entity pair must have 2 elements, got %d", len(pair))
		}
		e.Name, e.Type = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Text  string `json:"text"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	e.Name = firstNonEmpty(obj.Name, obj.Text)
	e.Type = firstNonEmpty(obj.Type, obj.Label)
	return nil
}

type Keyword struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}

func (k *Keyword) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("keyword pair must have 2 elements, got %d", len(pair))
		}
		if err := json.Unmarshal(pair[0], &k.Keyword); err != nil {
			return fmt.Errorf("decode keyword text: %w", err)
		}
		if err := json.Unmarshal(pair[1], &k.Score); err != nil {
			return fmt.Errorf("decode keyword score: %w", err)
		}
		return nil
	}
	type plain Keyword
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode keyword: %w", err)
	}
	*k = Keyword(obj)
	return nil
}

type ClassifiedCategory struct {
	Name      string
	Sentences []string
}

// ClassifiedSentences keeps categories in the order the backend sent them.
type ClassifiedSentences []ClassifiedCategory

func (c ClassifiedSentences) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, category := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(category.Name)
		if err != nil {
			return nil, err
		}
		sentences := category.Sentences
		if sentences == nil {
			sentences = []string{}
		}
		value, err := json.Marshal(sentences)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON skips categories whose value is not a list of strings.
func (c *ClassifiedSentences) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode classified sentences: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("classified sentences must be an object")
	}

	out := make(ClassifiedSentences, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode classified category name: %w", err)
		}
		name, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode classified category %q: %w", name, err)
		}
		var sentences []string
		if err := json.Unmarshal(raw, &sentences); err != nil {
			continue
		}
		out = append(out, ClassifiedCategory{Name: name, Sentences: sentences})
	}
	*c = out
	return nil
}

// UnmarshalJSON fails only when data is not a JSON object.
func (p *ResultPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return WrapError(ErrMalformedPayload, "decode result payload", err)
	}

	out := ResultPayload{}
	decodeField(fields, "audio_filename", &out.AudioFilename, &out.Malformed)
	decodeField(fields, "full_transcript", &out.FullTranscript, &out.Malformed)
	decodeField(fields, "dialogue", &out.Dialogue, &out.Malformed)
	decodeField(fields, "entities", &out.Entities, &out.Malformed)
	decodeField(fields, "keywords", &out.Keywords, &out.Malformed)
	decodeField(fields, "classified_sentences", &out.ClassifiedSentences, &out.Malformed)
	decodeField(fields, "processed_text", &out.ProcessedText, &out.Malformed)
	sort.Strings(out.Malformed)

	*p = out
	return nil
}

func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T, malformed *[]string) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		*malformed = append(*malformed, name)
		return
	}
	*dst = value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
