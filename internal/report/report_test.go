package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/fpang/idcard-ocr/internal/filehandler"
	"github.com/fpang/idcard-ocr/internal/idcard"
	"github.com/fpang/idcard-ocr/internal/ocr"
)

func ref(path string, side idcard.Side) *idcard.ImageRef {
	return &idcard.ImageRef{Path: path, Side: side}
}

// sampleStats builds a finalized run: alice both sides, bob front only,
// carol front rejected, dave with nothing readable.
func sampleStats(t *testing.T) *idcard.RunStatistics {
	t.Helper()
	items := []idcard.WorkItem{
		{Subject: "alice", Front: ref("/in/alice_front.png", idcard.Front), Back: ref("/in/alice_back.png", idcard.Back)},
		{Subject: "bob", Front: ref("/in/bob_front.png", idcard.Front)},
		{Subject: "carol", Front: ref("/in/carol_front.png", idcard.Front), Back: ref("/in/carol_back.png", idcard.Back)},
		{Subject: "dave", Back: ref("/in/dave_back.png", idcard.Back)},
	}
	agg := idcard.NewAggregator(items)
	front := map[string]string{
		ocr.FieldName: "Alice", ocr.FieldGender: "女", ocr.FieldNation: "汉",
		ocr.FieldBirth: "1990/1/1", ocr.FieldAddress: "Somewhere", ocr.FieldIDNum: "110101199001010000",
	}
	back := map[string]string{ocr.FieldAuthority: "Bureau", ocr.FieldValidDate: "2020.01.01-2040.01.01"}

	records := []struct {
		subject string
		side    idcard.Side
		out     idcard.Outcome
	}{
		{"alice", idcard.Front, idcard.Success(front)},
		{"alice", idcard.Back, idcard.Success(back)},
		{"bob", idcard.Front, idcard.Success(map[string]string{ocr.FieldName: "Bob"})},
		{"bob", idcard.Back, idcard.Missing()},
		{"carol", idcard.Front, idcard.APIError("FailedOperation.ImageDecodeFailed", "decode failed")},
		{"carol", idcard.Back, idcard.Success(back)},
		{"dave", idcard.Front, idcard.Missing()},
		{"dave", idcard.Back, idcard.Exception("read timeout")},
	}
	for _, r := range records {
		if err := agg.Record(r.subject, r.side, r.out); err != nil {
			t.Fatalf("Record(%s, %s): %v", r.subject, r.side, err)
		}
	}
	stats, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return stats
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleStats(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, utf8BOM) {
		t.Fatal("CSV output is missing the UTF-8 BOM")
	}

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header + 4", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}

	alice := rows[1]
	if alice[0] != idcard.BothSuccess.Label() || alice[1] != "alice" {
		t.Errorf("alice row = %v", alice)
	}
	if alice[9] != "'110101199001010000" {
		t.Errorf("id_num = %q, want quote-prefixed", alice[9])
	}
	if alice[10] != "Bureau" {
		t.Errorf("authority = %q", alice[10])
	}

	bob := rows[2]
	if bob[3] != "N/A" || bob[13] != "MISSING" || bob[9] != "" {
		t.Errorf("bob row = %v", bob)
	}

	carol := rows[3]
	if carol[0] != idcard.BackOnly.Label() || carol[12] != "ERROR" {
		t.Errorf("carol row = %v", carol)
	}
	if carol[14] != "FailedOperation.ImageDecodeFailed: decode failed" {
		t.Errorf("front_error = %q", carol[14])
	}

	dave := rows[4]
	if dave[0] != idcard.BothFailed.Label() || dave[13] != "EXCEPTION" || dave[15] != "read timeout" {
		t.Errorf("dave row = %v", dave)
	}
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_card_results.csv")
	if err := WriteCSVFile(path, sampleStats(t)); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("CSV not written: %v", err)
	}
	if err := WriteCSVFile(filepath.Join(t.TempDir(), "missing", "x.csv"), sampleStats(t)); err == nil {
		t.Error("expected error for missing parent directory")
	}
}

func TestWriteSummary(t *testing.T) {
	info := RunInfo{
		RunID:       "run-1",
		Generated:   time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Elapsed:     1500 * time.Millisecond,
		CSVPath:     "out.csv",
		LogPath:     "ocr_processing.log",
		SummaryPath: "processing_summary.txt",
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleStats(t), info); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Generated: 2024-05-01 10:30:00",
		"Run ID:    run-1",
		"【总体统计 / OVERALL STATISTICS】",
		"总处理人数 (Total Persons):              4",
		"API调用总数 (Total API Calls):           6",
		"成功调用数 (Successful Calls):           4",
		"失败调用数 (Failed Calls):               2",
		"成功率 (Success Rate):                   66.7%",
		"✓ 正反面均成功 (Both Sides Success):      1 (25.0%)",
		"⚠ 仅正面成功 (Front Only):                1 (25.0%)",
		"缺失正面 (Missing Front):                 1",
		"  - dave (正面 N/A, 背面 dave_back.png)",
		"共 1 个失败项目:",
		"   背面状态 (Back):  EXCEPTION - read timeout",
		"共 2 个部分成功项目:",
		"   正面: ERROR (FailedOperation.ImageDecodeFailed: decode failed)",
		"处理完成 (Processing Completed)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	if strings.Contains(out, "归档 (Archive)") {
		t.Error("archive line printed without an archive path")
	}
}

func TestWriteSummaryWithoutCalls(t *testing.T) {
	agg := idcard.NewAggregator([]idcard.WorkItem{{Subject: "x"}})
	agg.Record("x", idcard.Front, idcard.Missing())
	agg.Record("x", idcard.Back, idcard.Missing())
	stats, err := agg.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	// A subject with no images at all is a failure, not a partial.
	var buf bytes.Buffer
	if err := WriteSummary(&buf, stats, RunInfo{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "PARTIAL SUCCESS ITEMS") {
		t.Error("partial section printed without partial results")
	}
	if !strings.Contains(buf.String(), "成功率 (Success Rate):                   0.0%") {
		t.Error("zero-call success rate not rendered as 0.0%")
	}
}

func TestPrintConsoleSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	PrintConsoleSummary(&buf, sampleStats(t), RunInfo{CSVPath: "a.csv", SummaryPath: "s.txt", ArchivePath: "r.zip"})
	out := buf.String()
	for _, want := range []string{"PROCESSING SUMMARY", "完全失败:          1", "结果已保存至:      a.csv", "归档已保存至:      r.zip"} {
		if !strings.Contains(out, want) {
			t.Errorf("console summary missing %q", want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("colour codes written with NoColor set")
	}
}

func TestPrintAudit(t *testing.T) {
	color.NoColor = true
	r := &filehandler.AuditReport{
		Inputs:            3,
		Complete:          []filehandler.AuditEntry{{Name: "alice"}},
		CompletelyMissing: []filehandler.AuditEntry{{Name: "carol", Source: "carol.pdf"}},
		Incomplete: []filehandler.AuditEntry{{
			Name: "bob", Source: "bob.pdf",
			Missing: []idcard.Side{idcard.Front}, Found: []idcard.Side{idcard.Back},
		}},
		ExtraOutputs: []filehandler.AuditEntry{{Name: "dave", Files: []string{"dave_front.png"}}},
	}
	var buf bytes.Buffer
	PrintAudit(&buf, r)
	out := buf.String()
	for _, want := range []string{
		"Total input PDFs: 3",
		"TOTAL SKIPPED/INCOMPLETE: 2",
		"  1. carol.pdf",
		"     Missing: front",
		"     Found: back",
		"     Files: dave_front.png",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %q", want)
		}
	}
}

func TestWriteArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "id_card_results.csv")
	stats := sampleStats(t)
	if err := WriteCSVFile(csvPath, stats); err != nil {
		t.Fatal(err)
	}

	info := RunInfo{RunID: NewRunID(), Generated: time.Now().UTC().Truncate(time.Second), Elapsed: 2 * time.Second}
	path, err := WriteArchive(filepath.Join(dir, "results"), stats, info, csvPath)
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if filepath.Base(path) != "run-"+info.RunID+".zip" {
		t.Errorf("archive path = %s", path)
	}

	rec, err := ReadRunRecord(path)
	if err != nil {
		t.Fatalf("ReadRunRecord: %v", err)
	}
	if rec.RunID != info.RunID || rec.ElapsedMs != 2000 {
		t.Errorf("record header = %+v", rec)
	}
	if rec.Totals.Subjects != 4 || rec.Totals.Calls != 6 || rec.Totals.BothFailed != 1 {
		t.Errorf("totals = %+v", rec.Totals)
	}
	if len(rec.Subjects) != 4 || rec.Subjects[2].Subject != "carol" || rec.Subjects[2].Status != "BackOnly" {
		t.Fatalf("subjects = %+v", rec.Subjects)
	}
	if rec.Subjects[2].Front.Status != "ERROR" || rec.Subjects[2].Back.Fields[ocr.FieldAuthority] != "Bureau" {
		t.Errorf("carol record = %+v", rec.Subjects[2])
	}
}

func TestWriteArchiveErrors(t *testing.T) {
	stats := sampleStats(t)
	if _, err := WriteArchive(t.TempDir(), stats, RunInfo{}); err == nil {
		t.Error("expected error without run ID")
	}
	info := RunInfo{RunID: "x"}
	if _, err := WriteArchive(t.TempDir(), stats, info, filepath.Join(t.TempDir(), "gone.csv")); err == nil {
		t.Error("expected error for missing input file")
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 36 {
		t.Errorf("NewRunID() = %q, %q", a, b)
	}
}
