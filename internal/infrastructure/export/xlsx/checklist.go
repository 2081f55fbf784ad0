// Package xlsx renders checklist results as Excel workbooks for reviewers.
package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

const (
	summarySheet = "Ringkasan"
	checksSheet  = "Checklist"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var statusFill = map[domain.CheckStatus]string{
	domain.CheckPassed:  "C6EFCE",
	domain.CheckWarning: "FFEB9C",
	domain.CheckFailed:  "FFC7CE",
}

// Report is everything one exported workbook shows.
type Report struct {
	Applicant   *domain.Applicant
	Formasi     *domain.Formasi
	Checklist   domain.Checklist
	GeneratedAt time.Time
}

// WriteChecklist streams the workbook to w.
func WriteChecklist(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(checksSheet); err != nil {
		return fmt.Errorf("create checklist sheet: %w", err)
	}
	if err := writeSummary(f, report); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeChecks(f, report.Checklist); err != nil {
		return fmt.Errorf("write checklist sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, report Report) error {
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 48); err != nil {
		return err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetCellValue(summarySheet, "A1", "Checklist Persyaratan Pelamar"); err != nil {
		return err
	}
	if err := f.MergeCell(summarySheet, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", titleStyle); err != nil {
		return err
	}

	rows := [][2]any{
		{"Dibuat", report.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	if a := report.Applicant; a != nil {
		rows = append(rows,
			[2]any{"Pelamar", a.FullName},
			[2]any{"NIK", a.NIK},
			[2]any{"Pendidikan", a.EducationLevel + " " + a.Major},
		)
	}
	if fm := report.Formasi; fm != nil {
		rows = append(rows,
			[2]any{"Formasi", fm.Title},
			[2]any{"Instansi", fm.Agency},
		)
	}
	rows = append(rows,
		[2]any{"Hasil", string(report.Checklist.Overall)},
		[2]any{"Skor", fmt.Sprintf("%d / %d", report.Checklist.Score, report.Checklist.TotalChecks)},
	)

	for i, r := range rows {
		row := i + 3
		label := fmt.Sprintf("A%d", row)
		if err := f.SetCellValue(summarySheet, label, r[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(summarySheet, label, label, labelStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeChecks(f *excelize.File, checklist domain.Checklist) error {
	headers := []string{"No", "ID", "Persyaratan", "Kategori", "Status", "Kemiripan", "Keterangan"}
	widths := []float64{6, 18, 40, 16, 12, 12, 60}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(checksSheet, col, col, widths[i]); err != nil {
			return err
		}
		if err := f.SetCellValue(checksSheet, col+"1", h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(checksSheet, "A1", "G1", headerStyle); err != nil {
		return err
	}

	statusStyles := make(map[domain.CheckStatus]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		statusStyles[status] = id
	}

	for i, check := range checklist.Checks {
		row := i + 2
		var similarity any = ""
		if check.Similarity != nil {
			similarity = *check.Similarity
		}
		values := []any{i + 1, check.ID, check.Label, check.Category, string(check.Status), similarity, check.Detail}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(checksSheet, cell, &values); err != nil {
			return err
		}
		if style, ok := statusStyles[check.Status]; ok {
			statusCell := fmt.Sprintf("E%d", row)
			if err := f.SetCellStyle(checksSheet, statusCell, statusCell, style); err != nil {
				return err
			}
		}
	}
	return f.SetPanes(checksSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
