package terminal

import (
	"fmt"
	"strings"

	"github.com/kirillkom/audio-report-client/internal/core/report"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/render/htmlview"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/render/textview"
	"github.com/kirillkom/audio-report-client/internal/infrastructure/render/xlsx"
)

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatHTML, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, html or xlsx)", s)
	}
}

func (f Format) Ext() string {
	switch f {
	case FormatHTML:
		return ".html"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".txt"
	}
}

// Binary reports whether the encoded report is unfit for a terminal.
func (f Format) Binary() bool {
	return f == FormatXLSX
}

// Encode serializes a fragment in the given format.
func Encode(format Format, jobID string, fragment report.Fragment) ([]byte, error) {
	switch format {
	case FormatHTML:
		doc, err := htmlview.Document("Analysis report "+jobID, fragment)
		if err != nil {
			return nil, err
		}
		return []byte(doc), nil
	case FormatXLSX:
		return xlsx.Render(fragment)
	default:
		return []byte(textview.Render(fragment)), nil
	}
}
