package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"evalconsole/internal/domain/evaluation"
)

// EvaluationPDF renders the evaluation details view: header, scores,
// objectives, competencies and the activity feed grouped by day.
func EvaluationPDF(w io.Writer, d evaluation.Details, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	ev := d.Evaluation
	pdf.SetTitle(tr("Evaluation "+ev.ID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("%s Evaluation - %s", ev.Type, ev.Period)))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		if value == "" {
			return
		}
		pdf.Cell(0, 7, tr(label+": "+value))
		pdf.Ln(6)
	}
	line("Employee", firstNonEmpty(ev.EmployeeName, ev.EmployeeID))
	line("Reviewer", firstNonEmpty(ev.Reviewer, ev.ReviewerID))
	status := string(ev.Status)
	if d.SecondaryLabel != "" {
		status += " (" + d.SecondaryLabel + ")"
	}
	line("Status", status)
	line("Progress", fmt.Sprintf("step %d of %d", d.Progress.Index+1, d.Progress.Total))
	pdf.Ln(4)

	heading(pdf, tr, "Scores")
	line("Objectives", d.Scores.Objectives.String())
	line("Competencies", d.Scores.Competencies.String())
	line("Overall", fmt.Sprintf("%.0f", d.Scores.Combined))
	pdf.Ln(4)

	heading(pdf, tr, "Objectives")
	widths := []float64{80, 22, 22, 22, 34}
	tableRow(pdf, tr, widths, true, "Title", "Target", "Achieved", "Weight", "Status")
	for _, o := range d.Objectives {
		tableRow(pdf, tr, widths, false,
			o.Title,
			fmt.Sprintf("%g", o.Target),
			fmt.Sprintf("%g", o.Achieved),
			fmt.Sprintf("%g%%", o.Weight),
			string(o.Status))
	}
	pdf.Ln(4)

	heading(pdf, tr, "Competencies")
	widths = []float64{70, 30, 25, 25, 30}
	tableRow(pdf, tr, widths, true, "Name", "Category", "Required", "Actual", "Weight")
	for _, c := range d.Competencies {
		tableRow(pdf, tr, widths, false,
			c.Name,
			string(c.Category),
			fmt.Sprintf("%g", c.RequiredLevel),
			fmt.Sprintf("%g", c.ActualLevel),
			fmt.Sprintf("%g%%", c.Weight))
	}
	pdf.Ln(4)

	heading(pdf, tr, "Activity")
	for _, day := range d.Feed {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, day.Day.In(loc).Format("Monday, 2 January 2006"))
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		for _, e := range day.Entries {
			text := fmt.Sprintf("%s  %s - %s by %s", e.Timestamp.In(loc).Format("15:04"), e.Action, e.Status, e.Actor)
			if c := strings.TrimSpace(e.Comment); c != "" {
				text += ": " + c
			}
			pdf.MultiCell(0, 5, tr(text), "", "L", false)
		}
		pdf.Ln(2)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
}

func tableRow(pdf *gofpdf.Fpdf, tr func(string) string, widths []float64, header bool, cells ...string) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 7, tr(truncate(cell, int(widths[i]/2))), "1", 0, "L", header, 0, "")
	}
	pdf.Ln(-1)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
