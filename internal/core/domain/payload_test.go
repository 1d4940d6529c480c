package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResultPayloadDecodesAllSections(t *testing.T) {
	raw := `{
		"audio_filename": "call.wav",
		"full_transcript": "hello there",
		"dialogue": [{"speaker":"A","text":"Hello"},{"speaker":"B","text":"Hi"}],
		"entities": [["Alice","PERSON"], {"name":"Paris","type":"GPE"}, {"text":"ACME","label":"ORG"}],
		"keywords": [["invoice", 0.91], {"keyword":"refund","score":0.5}],
		"classified_sentences": {"Zeta":["z1"], "Alpha":["a1","a2"]},
		"processed_text": "hello there"
	}`

	var p ResultPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(p.Malformed) != 0 {
		t.Fatalf("expected no malformed sections, got %v", p.Malformed)
	}
	if len(p.Dialogue) != 2 || p.Dialogue[1].Speaker != "B" {
		t.Fatalf("unexpected dialogue %+v", p.Dialogue)
	}
	wantEntities := []Entity{{"Alice", "PERSON"}, {"Paris", "GPE"}, {"ACME", "ORG"}}
	if len(p.Entities) != len(wantEntities) {
		t.Fatalf("expected %d entities, got %+v", len(wantEntities), p.Entities)
	}
	for i, want := range wantEntities {
		if p.Entities[i] != want {
			t.Fatalf("entity %d: expected %+v, got %+v", i, want, p.Entities[i])
		}
	}
	if len(p.Keywords) != 2 || p.Keywords[0].Keyword != "invoice" || p.Keywords[0].Score != 0.91 {
		t.Fatalf("unexpected keywords %+v", p.Keywords)
	}
	if len(p.ClassifiedSentences) != 2 || p.ClassifiedSentences[0].Name != "Zeta" || p.ClassifiedSentences[1].Name != "Alpha" {
		t.Fatalf("expected document order Zeta, Alpha, got %+v", p.ClassifiedSentences)
	}
}

func TestResultPayloadDropsMalformedSections(t *testing.T) {
	raw := `{
		"dialogue": "not a list",
		"entities": [["only-one"]],
		"full_transcript": "kept",
		"classified_sentences": {"Good":["s"], "Bad": 3}
	}`

	var p ResultPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.FullTranscript != "kept" {
		t.Fatalf("expected transcript kept, got %q", p.FullTranscript)
	}
	if p.Dialogue != nil || p.Entities != nil {
		t.Fatalf("expected malformed sections dropped, got %+v / %+v", p.Dialogue, p.Entities)
	}
	if len(p.Malformed) != 2 || p.Malformed[0] != "dialogue" || p.Malformed[1] != "entities" {
		t.Fatalf("unexpected malformed list %v", p.Malformed)
	}
	if len(p.ClassifiedSentences) != 1 || p.ClassifiedSentences[0].Name != "Good" {
		t.Fatalf("expected only the valid category, got %+v", p.ClassifiedSentences)
	}
}

func TestResultPayloadRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`"text"`, `[1,2]`, `42`} {
		var p ResultPayload
		err := json.Unmarshal([]byte(raw), &p)
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("expected malformed payload for %s, got %v", raw, err)
		}
	}
}

func TestClassifiedSentencesMarshalKeepsOrder(t *testing.T) {
	c := ClassifiedSentences{{Name: "b", Sentences: []string{"1"}}, {Name: "a"}}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"b":["1"],"a":[]}` {
		t.Fatalf("unexpected json %s", data)
	}
}
