package report

type SectionKind string

const (
	SectionAudioFile     SectionKind = "audio_file"
	SectionDialogue      SectionKind = "dialogue"
	SectionTranscript    SectionKind = "transcript"
	SectionPlaceholder   SectionKind = "placeholder"
	SectionEntities      SectionKind = "entities"
	SectionKeywords      SectionKind = "keywords"
	SectionClassified    SectionKind = "classified"
	SectionProcessedText SectionKind = "processed_text"
)

// Fragment is a renderer-neutral report. All strings are literal text;
// markup is produced only by renderers that escape it.
type Fragment struct {
	Sections []Section
}

type Section struct {
	Kind  SectionKind
	Title string
	Text  string
	Lines []Line
	Items []string
}

// Line is one dialogue turn.
type Line struct {
	Speaker string
	Color   string
	Text    string
}

func (l Line) Label() string {
	return "Speaker " + l.Speaker
}

func (f Fragment) Find(kind SectionKind) (Section, bool) {
	for _, s := range f.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

func (f Fragment) All(kind SectionKind) []Section {
	var out []Section
	for _, s := range f.Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
