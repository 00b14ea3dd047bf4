package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// RunInfo carries the run metadata printed alongside the statistics.
type RunInfo struct {
	RunID       string
	Generated   time.Time
	Elapsed     time.Duration
	CSVPath     string
	LogPath     string
	SummaryPath string
	ArchivePath string
}

var (
	rule     = strings.Repeat("=", 80)
	thinRule = strings.Repeat("-", 80)
)

// WriteSummary renders the bilingual text summary.
func WriteSummary(w io.Writer, stats *idcard.RunStatistics, info RunInfo) error {
	b := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(b, format, args...) }
	section := func(title string) {
		p("【%s】\n%s\n", title, thinRule)
	}

	p("%s\nID CARD OCR PROCESSING SUMMARY\n", rule)
	p("Generated: %s\n", info.Generated.Format("2006-01-02 15:04:05"))
	if info.RunID != "" {
		p("Run ID:    %s\n", info.RunID)
	}
	p("%s\n\n", rule)

	section("总体统计 / OVERALL STATISTICS")
	p("总处理人数 (Total Persons):              %d\n", stats.TotalSubjects)
	p("API调用总数 (Total API Calls):           %d\n", stats.TotalCalls)
	p("成功调用数 (Successful Calls):           %d\n", stats.SuccessfulCalls)
	p("失败调用数 (Failed Calls):               %d\n", stats.FailedCalls)
	p("  接口错误 (API Errors):                 %d\n", stats.APIErrors)
	p("  异常 (Exceptions):                     %d\n", stats.Exceptions)
	p("成功率 (Success Rate):                   %.1f%%\n", stats.SuccessRate())
	if info.Elapsed > 0 {
		p("耗时 (Elapsed):                          %s\n", info.Elapsed.Round(time.Millisecond))
	}
	p("\n")

	section("详细结果 / DETAILED RESULTS")
	p("✓ 正反面均成功 (Both Sides Success):      %d (%.1f%%)\n", stats.BothSuccess, stats.Share(stats.BothSuccess))
	p("⚠ 仅正面成功 (Front Only):                %d (%.1f%%)\n", stats.FrontOnly, stats.Share(stats.FrontOnly))
	p("⚠ 仅背面成功 (Back Only):                 %d (%.1f%%)\n", stats.BackOnly, stats.Share(stats.BackOnly))
	p("✗ 正反面均失败 (Both Sides Failed):       %d (%.1f%%)\n", stats.BothFailed, stats.Share(stats.BothFailed))
	p("\n")

	section("缺失图像 / MISSING IMAGES")
	p("缺失正面 (Missing Front):                 %d\n", stats.FrontMissing)
	p("缺失背面 (Missing Back):                  %d\n", stats.BackMissing)
	for _, r := range stats.MissingImages {
		p("  - %s (正面 %s, 背面 %s)\n", r.Subject, r.FrontImage, r.BackImage)
	}
	p("\n")

	section("失败项目列表 / FAILED ITEMS")
	if len(stats.Failed) == 0 {
		p("无失败项目 (No failed items)\n\n")
	} else {
		p("共 %d 个失败项目:\n\n", len(stats.Failed))
		for i, r := range stats.Failed {
			p("%d. %s\n", i+1, r.Subject)
			p("   正面状态 (Front): %s%s\n", r.Front.Kind.Status(), suffix(" - ", r.Front.Error(), ""))
			p("   背面状态 (Back):  %s%s\n\n", r.Back.Kind.Status(), suffix(" - ", r.Back.Error(), ""))
		}
	}

	if len(stats.Partial) > 0 {
		section("部分成功项目 / PARTIAL SUCCESS ITEMS")
		p("共 %d 个部分成功项目:\n\n", len(stats.Partial))
		for i, r := range stats.Partial {
			p("%d. %s - %s\n", i+1, r.Subject, r.Status.Label())
			p("   正面: %s%s\n", r.Front.Kind.Status(), suffix(" (", r.Front.Error(), ")"))
			p("   背面: %s%s\n\n", r.Back.Kind.Status(), suffix(" (", r.Back.Error(), ")"))
		}
	}

	section("输出文件 / OUTPUT FILES")
	p("详细结果 (Detailed Results): %s\n", info.CSVPath)
	p("处理日志 (Processing Log):   %s\n", info.LogPath)
	p("本摘要 (This Summary):        %s\n", info.SummaryPath)
	if info.ArchivePath != "" {
		p("归档 (Archive):               %s\n", info.ArchivePath)
	}
	p("\n%s\n处理完成 (Processing Completed)\n%s\n", rule, rule)

	return b.Flush()
}

// WriteSummaryFile writes the summary to info.SummaryPath.
func WriteSummaryFile(stats *idcard.RunStatistics, info RunInfo) error {
	f, err := os.Create(info.SummaryPath)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	if err := WriteSummary(f, stats, info); err != nil {
		f.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close summary file: %w", err)
	}
	log.Info().Str("path", info.SummaryPath).Msg("Summary report created")
	return nil
}

func suffix(pre, s, post string) string {
	if s == "" {
		return ""
	}
	return pre + s + post
}
