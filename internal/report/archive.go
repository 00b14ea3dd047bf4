package report

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// ZipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const ZipMethodZstd uint16 = 93

// resultsEntry is the name of the JSON run record inside the archive.
const resultsEntry = "results.json"

func init() {
	zip.RegisterCompressor(ZipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})
	zip.RegisterDecompressor(ZipMethodZstd, zstd.ZipDecompressor())
}

// NewRunID returns a fresh identifier for one batch run.
func NewRunID() string {
	return uuid.NewString()
}

// RunRecord is the JSON document stored in each run archive.
type RunRecord struct {
	RunID     string          `json:"runId"`
	Generated time.Time       `json:"generated"`
	ElapsedMs int64           `json:"elapsedMs"`
	Totals    RecordTotals    `json:"totals"`
	Subjects  []SubjectRecord `json:"subjects"`
}

// RecordTotals mirrors the RunStatistics counters.
type RecordTotals struct {
	Subjects        int `json:"subjects"`
	Calls           int `json:"calls"`
	SuccessfulCalls int `json:"successfulCalls"`
	FailedCalls     int `json:"failedCalls"`
	APIErrors       int `json:"apiErrors"`
	Exceptions      int `json:"exceptions"`
	FrontMissing    int `json:"frontMissing"`
	BackMissing     int `json:"backMissing"`
	BothSuccess     int `json:"bothSuccess"`
	FrontOnly       int `json:"frontOnly"`
	BackOnly        int `json:"backOnly"`
	BothFailed      int `json:"bothFailed"`
}

// SubjectRecord is one subject's entry in the run record.
type SubjectRecord struct {
	Subject string     `json:"subject"`
	Status  string     `json:"status"`
	Front   SideRecord `json:"front"`
	Back    SideRecord `json:"back"`
}

// SideRecord is one call unit's outcome.
type SideRecord struct {
	Image      string            `json:"image"`
	Status     string            `json:"status"`
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
	Compressed bool              `json:"compressed,omitempty"`
}

// NewRunRecord flattens finalized statistics into the archive document.
func NewRunRecord(stats *idcard.RunStatistics, info RunInfo) RunRecord {
	rec := RunRecord{
		RunID:     info.RunID,
		Generated: info.Generated,
		ElapsedMs: info.Elapsed.Milliseconds(),
		Totals: RecordTotals{
			Subjects:        stats.TotalSubjects,
			Calls:           stats.TotalCalls,
			SuccessfulCalls: stats.SuccessfulCalls,
			FailedCalls:     stats.FailedCalls,
			APIErrors:       stats.APIErrors,
			Exceptions:      stats.Exceptions,
			FrontMissing:    stats.FrontMissing,
			BackMissing:     stats.BackMissing,
			BothSuccess:     stats.BothSuccess,
			FrontOnly:       stats.FrontOnly,
			BackOnly:        stats.BackOnly,
			BothFailed:      stats.BothFailed,
		},
		Subjects: make([]SubjectRecord, 0, len(stats.Results)),
	}
	for _, r := range stats.Results {
		rec.Subjects = append(rec.Subjects, SubjectRecord{
			Subject: r.Subject,
			Status:  r.Status.String(),
			Front:   sideRecord(r.FrontImage, r.Front),
			Back:    sideRecord(r.BackImage, r.Back),
		})
	}
	return rec
}

func sideRecord(image string, o idcard.Outcome) SideRecord {
	return SideRecord{
		Image:      image,
		Status:     o.Kind.Status(),
		Fields:     o.Fields,
		Error:      o.Error(),
		Attempts:   o.Attempts,
		Compressed: o.Compressed,
	}
}

// WriteArchive bundles the run record and the given report files into
// <dir>/run-<runID>.zip using Zstandard compression. Returns the archive path.
func WriteArchive(dir string, stats *idcard.RunStatistics, info RunInfo, files ...string) (string, error) {
	if info.RunID == "" {
		return "", fmt.Errorf("run ID is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(dir, "run-"+info.RunID+".zip")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(f)

	if err := writeRecord(zw, NewRunRecord(stats, info), info.Generated); err != nil {
		zw.Close()
		f.Close()
		return "", err
	}
	for _, name := range files {
		if err := addFile(zw, name, info.Generated); err != nil {
			zw.Close()
			f.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	log.Info().Str("path", path).Int("files", len(files)+1).Msg("Run archive created")
	return path, nil
}

func writeRecord(zw *zip.Writer, rec RunRecord, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     resultsEntry,
		Method:   ZipMethodZstd,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create %s entry: %w", resultsEntry, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string, modified time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   ZipMethodZstd,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create zip entry for %s: %w", path, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy %s into archive: %w", path, err)
	}
	return nil
}

// ReadRunRecord loads the run record from an archive written by WriteArchive.
func ReadRunRecord(path string) (*RunRecord, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	rc, err := zr.Open(resultsEntry)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", resultsEntry, err)
	}
	defer rc.Close()

	var rec RunRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return &rec, nil
}
