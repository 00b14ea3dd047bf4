package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/fpang/idcard-ocr/internal/filehandler"
	"github.com/fpang/idcard-ocr/internal/idcard"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
)

// PrintConsoleSummary prints a short coloured summary for the terminal.
// Colour is disabled automatically when w is not a terminal.
func PrintConsoleSummary(w io.Writer, stats *idcard.RunStatistics, info RunInfo) {
	line := strings.Repeat("=", 60)

	fmt.Fprintln(w)
	headerColor.Fprintln(w, line)
	headerColor.Fprintln(w, "处理摘要 / PROCESSING SUMMARY")
	headerColor.Fprintln(w, line)
	fmt.Fprintf(w, "总处理人数:        %d\n", stats.TotalSubjects)
	successColor.Fprintf(w, "正反面均成功:      %d\n", stats.BothSuccess)
	warnColor.Fprintf(w, "仅正面成功:        %d\n", stats.FrontOnly)
	warnColor.Fprintf(w, "仅背面成功:        %d\n", stats.BackOnly)
	if stats.BothFailed > 0 {
		failColor.Fprintf(w, "完全失败:          %d\n", stats.BothFailed)
	} else {
		fmt.Fprintf(w, "完全失败:          %d\n", stats.BothFailed)
	}
	fmt.Fprintf(w, "API调用成功:       %d\n", stats.SuccessfulCalls)
	fmt.Fprintf(w, "API调用失败:       %d\n", stats.FailedCalls)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "结果已保存至:      %s\n", info.CSVPath)
	fmt.Fprintf(w, "摘要已保存至:      %s\n", info.SummaryPath)
	if info.ArchivePath != "" {
		fmt.Fprintf(w, "归档已保存至:      %s\n", info.ArchivePath)
	}
	headerColor.Fprintln(w, line)
}

// PrintAudit prints an input/output comparison report.
func PrintAudit(w io.Writer, r *filehandler.AuditReport) {
	line := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	headerColor.Fprintln(w, line)
	headerColor.Fprintln(w, "INPUT/OUTPUT COMPARISON REPORT")
	headerColor.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SUMMARY:")
	fmt.Fprintf(w, "  Total input PDFs: %d\n", r.Inputs)
	successColor.Fprintf(w, "  Complete extractions (both front & back): %d\n", len(r.Complete))
	fmt.Fprintf(w, "  Completely missing outputs: %d\n", len(r.CompletelyMissing))
	fmt.Fprintf(w, "  Incomplete extractions (missing front or back): %d\n", len(r.Incomplete))
	fmt.Fprintf(w, "  Extra output files (no matching input): %d\n", len(r.ExtraOutputs))
	if r.Skipped() > 0 {
		failColor.Fprintf(w, "\n  TOTAL SKIPPED/INCOMPLETE: %d\n", r.Skipped())
	}
	fmt.Fprintln(w)

	if len(r.CompletelyMissing) > 0 {
		warnColor.Fprintln(w, "COMPLETELY MISSING OUTPUTS:")
		fmt.Fprintln(w, thin)
		for i, e := range r.CompletelyMissing {
			fmt.Fprintf(w, "  %d. %s\n", i+1, e.Source)
		}
		fmt.Fprintln(w)
	}
	if len(r.Incomplete) > 0 {
		warnColor.Fprintln(w, "INCOMPLETE EXTRACTIONS:")
		fmt.Fprintln(w, thin)
		for i, e := range r.Incomplete {
			fmt.Fprintf(w, "  %d. %s\n", i+1, e.Source)
			fmt.Fprintf(w, "     Missing: %s\n", sideLabels(e.Missing))
			fmt.Fprintf(w, "     Found: %s\n", sideLabels(e.Found))
		}
		fmt.Fprintln(w)
	}
	if len(r.ExtraOutputs) > 0 {
		warnColor.Fprintln(w, "EXTRA OUTPUT FILES:")
		fmt.Fprintln(w, thin)
		for i, e := range r.ExtraOutputs {
			fmt.Fprintf(w, "  %d. %s\n", i+1, e.Name)
			fmt.Fprintf(w, "     Files: %s\n", strings.Join(e.Files, ", "))
		}
		fmt.Fprintln(w)
	}
}

func sideLabels(sides []idcard.Side) string {
	labels := make([]string, len(sides))
	for i, s := range sides {
		labels[i] = s.Label()
	}
	return strings.Join(labels, ", ")
}
