package reportpdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

// Entry is one challenge row in a student performance report. Text fields
// are expected to be sanitized before they reach the renderer.
type Entry struct {
	Challenge   string
	SubmittedAt string
	Flag        string
	Mark        *int
	MarkName    string
	Value       int
	Comment     string
	Technical   bool
}

// Percentage returns the entry's mark as a percentage of the challenge
// value, or 0 when unmarked.
func (e Entry) Percentage() float64 {
	if e.Mark == nil || e.Value <= 0 {
		return 0
	}

	return float64(*e.Mark) / float64(e.Value) * 100
}

// Summary aggregates report entries for the header line.
type Summary struct {
	Count        int
	Technical    int
	NonTechnical int
	Marked       int
	Average      float64
}

// Summarize computes report header statistics. Average is the mean of
// per-entry percentages over marked entries only, zero when none are marked.
func Summarize(entries []Entry) Summary {
	summary := Summary{Count: len(entries)}

	total := 0.0
	for _, entry := range entries {
		if entry.Technical {
			summary.Technical++
		} else {
			summary.NonTechnical++
		}
		if entry.Mark != nil {
			summary.Marked++
			total += entry.Percentage()
		}
	}

	if summary.Marked > 0 {
		summary.Average = total / float64(summary.Marked)
	}

	return summary
}

const (
	answerPreviewLimit = 100
	noFeedbackText     = "(No feedback provided)"
)

// Renderer produces student performance report PDFs.
type Renderer struct {
	ctfName string
	logger  zerolog.Logger
}

// NewRenderer constructs a report renderer branded with the platform name.
func NewRenderer(ctfName string, logger zerolog.Logger) *Renderer {
	if ctfName == "" {
		ctfName = "CTF"
	}

	return &Renderer{
		ctfName: ctfName,
		logger:  logger.With().Str("component", "report_pdf").Logger(),
	}
}

// Render builds the PDF document: title block, summary line, then one
// bordered block per entry, manually graded work first and autograded work
// on a fresh page when both sections are present.
func (r *Renderer) Render(studentName, studentEmail, subtitle string, entries []Entry, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(19, 19, 19)
	pdf.SetAutoPageBreak(true, 19)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(26, 26, 26)
	pdf.CellFormat(0, 12, tr(fmt.Sprintf("%s - %s", r.ctfName, subtitle)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(85, 85, 85)
	header := fmt.Sprintf("Student: %s (%s) | Generated: %s", studentName, studentEmail, generatedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 7, tr(header), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	summary := Summarize(entries)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 51, 51)
	summaryLine := fmt.Sprintf(
		"Summary: %d submission(s) (%d non-technical, %d technical), %d marked, Average: %.1f%%",
		summary.Count, summary.NonTechnical, summary.Technical, summary.Marked, summary.Average,
	)
	pdf.MultiCell(0, 6, tr(summaryLine), "", "L", false)
	pdf.Ln(4)

	if len(entries) == 0 {
		pdf.MultiCell(0, 6, tr("No submissions to display."), "", "L", false)
	} else {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(26, 26, 26)
		pdf.CellFormat(0, 8, "Detailed Feedback", "", 1, "L", false, 0, "")
		pdf.Ln(2)

		var technical, nonTechnical []Entry
		for _, entry := range entries {
			if entry.Technical {
				technical = append(technical, entry)
			} else {
				nonTechnical = append(nonTechnical, entry)
			}
		}

		r.renderSection(pdf, tr, "non-technical", nonTechnical)

		if len(nonTechnical) > 0 && len(technical) > 0 {
			pdf.AddPage()
		}

		r.renderSection(pdf, tr, "technical", technical)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(153, 153, 153)
	pdf.MultiCell(0, 5, tr("This is an automated report. For questions about your marks, please contact your tutor."), "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error().Err(err).Str("student", studentName).Msg("pdf build failed")
		return nil, fmt.Errorf("failed to build report pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *Renderer) renderSection(pdf *fpdf.Fpdf, tr func(string) string, title string, entries []Entry) {
	pdf.SetTextColor(51, 51, 51)

	if len(entries) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%s: None", title)), "", "L", false)
		pdf.Ln(3)
		return
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(26, 26, 26)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetDrawColor(204, 204, 204)

	for idx, entry := range entries {
		lines := []string{
			fmt.Sprintf("%d. %s", idx+1, entry.Challenge),
			fmt.Sprintf("Submitted: %s", entry.SubmittedAt),
		}

		if !entry.Technical {
			lines = append(lines, fmt.Sprintf("Your answer: %s", truncateAnswer(entry.Flag)))
		}

		lines = append(lines, fmt.Sprintf("Mark: %s", markText(entry)))

		if !entry.Technical {
			feedback := entry.Comment
			if feedback == "" {
				feedback = noFeedbackText
			}
			lines = append(lines, fmt.Sprintf("Feedback: %s", feedback))
		}

		pdf.MultiCell(0, 6, tr(strings.Join(lines, "\n")), "1", "L", true)
		pdf.Ln(4)
	}
}

func markText(entry Entry) string {
	if entry.Mark == nil {
		return "Not marked"
	}

	return fmt.Sprintf("%s (%.1f%%)", entry.MarkName, entry.Percentage())
}

func truncateAnswer(answer string) string {
	runes := []rune(answer)
	if len(runes) <= answerPreviewLimit {
		return answer
	}

	return string(runes[:answerPreviewLimit]) + "..."
}
