package xlsx

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/audio-report-client/internal/core/report"
)

const (
	SheetDialogue   = "Dialogue"
	SheetEntities   = "Entities"
	SheetKeywords   = "Keywords"
	SheetClassified = "Classified"
	SheetDetails    = "Details"
)

type workbook struct {
	file   *excelize.File
	header int
}

// Render writes the fragment as an XLSX workbook. Dialogue, Entities and
// Classified sheets are always present; Keywords and Details only when the
// report has those sections.
func Render(f report.Fragment) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	header, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wb := &workbook{file: file, header: header}

	if err := file.SetSheetName("Sheet1", SheetDialogue); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if err := wb.writeDialogue(f); err != nil {
		return nil, err
	}
	if err := wb.writeList(SheetEntities, "Entity", entityRows(f)); err != nil {
		return nil, err
	}
	if keywords, ok := f.Find(report.SectionKeywords); ok {
		if err := wb.writeList(SheetKeywords, "Keyword", keywords.Items); err != nil {
			return nil, err
		}
	}
	if err := wb.writeClassified(f.All(report.SectionClassified)); err != nil {
		return nil, err
	}
	if err := wb.writeDetails(f); err != nil {
		return nil, err
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *workbook) writeDialogue(f report.Fragment) error {
	if dialogue, ok := f.Find(report.SectionDialogue); ok {
		if err := w.writeHeader(SheetDialogue, "Speaker", "Text"); err != nil {
			return err
		}
		for i, line := range dialogue.Lines {
			row := i + 2
			if err := w.setRow(SheetDialogue, row, line.Label(), line.Text); err != nil {
				return err
			}
			if err := w.colorSpeaker(row, line.Color); err != nil {
				return err
			}
		}
		return nil
	}
	if transcript, ok := f.Find(report.SectionTranscript); ok {
		if err := w.writeHeader(SheetDialogue, transcript.Title); err != nil {
			return err
		}
		return w.setRow(SheetDialogue, 2, transcript.Text)
	}
	if placeholder, ok := f.Find(report.SectionPlaceholder); ok {
		return w.setRow(SheetDialogue, 1, placeholder.Text)
	}
	return nil
}

func (w *workbook) writeList(sheet, title string, items []string) error {
	if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := w.writeHeader(sheet, title); err != nil {
		return err
	}
	for i, item := range items {
		if err := w.setRow(sheet, i+2, item); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) writeClassified(sections []report.Section) error {
	if _, err := w.file.NewSheet(SheetClassified); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetClassified, err)
	}
	if err := w.writeHeader(SheetClassified, "Category", "Sentence"); err != nil {
		return err
	}
	row := 2
	for _, section := range sections {
		for _, item := range section.Items {
			if err := w.setRow(SheetClassified, row, section.Title, item); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func (w *workbook) writeDetails(f report.Fragment) error {
	var rows [][2]string
	if audio, ok := f.Find(report.SectionAudioFile); ok {
		rows = append(rows, [2]string{audio.Title, audio.Text})
	}
	if processed, ok := f.Find(report.SectionProcessedText); ok {
		rows = append(rows, [2]string{processed.Title, processed.Text})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := w.file.NewSheet(SheetDetails); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetDetails, err)
	}
	for i, r := range rows {
		if err := w.setRow(SheetDetails, i+1, r[0], r[1]); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := w.file.SetCellStyle(SheetDetails, cell, cell, w.header); err != nil {
			return fmt.Errorf("style %s!%s: %w", SheetDetails, cell, err)
		}
	}
	return nil
}

func (w *workbook) writeHeader(sheet string, titles ...string) error {
	if err := w.setRow(sheet, 1, titles...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := w.file.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func (w *workbook) setRow(sheet string, row int, values ...string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := w.file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func (w *workbook) colorSpeaker(row int, color string) error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: strings.TrimPrefix(color, "#")},
	})
	if err != nil {
		return fmt.Errorf("create speaker style: %w", err)
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := w.file.SetCellStyle(SheetDialogue, cell, cell, style); err != nil {
		return fmt.Errorf("style %s!%s: %w", SheetDialogue, cell, err)
	}
	return nil
}

func entityRows(f report.Fragment) []string {
	entities, ok := f.Find(report.SectionEntities)
	if !ok {
		return nil
	}
	if len(entities.Items) > 0 {
		return entities.Items
	}
	return []string{entities.Text}
}
