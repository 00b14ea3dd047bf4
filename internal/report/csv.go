// Package report renders finalized run statistics: the per-subject CSV, the
// bilingual summary text, the console summary and the run archive.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
	"github.com/fpang/idcard-ocr/internal/ocr"
)

// utf8BOM lets spreadsheet tools detect the encoding.
const utf8BOM = "\ufeff"

// Columns is the CSV header in output order.
var Columns = []string{
	"overall_status", "person_name", "front_image", "back_image",
	ocr.FieldName, ocr.FieldGender, ocr.FieldNation, ocr.FieldBirth, ocr.FieldAddress, ocr.FieldIDNum,
	ocr.FieldAuthority, ocr.FieldValidDate,
	"front_status", "back_status", "front_error", "back_error",
}

// Row converts one subject result into CSV cells in Columns order. The id
// number is prefixed with a quote so spreadsheets keep it as text.
func Row(r idcard.SubjectResult) []string {
	idNum := r.Field(ocr.FieldIDNum)
	if idNum != "" {
		idNum = "'" + idNum
	}
	return []string{
		r.Status.Label(),
		r.Subject,
		r.FrontImage,
		r.BackImage,
		r.Field(ocr.FieldName),
		r.Field(ocr.FieldGender),
		r.Field(ocr.FieldNation),
		r.Field(ocr.FieldBirth),
		r.Field(ocr.FieldAddress),
		idNum,
		r.Field(ocr.FieldAuthority),
		r.Field(ocr.FieldValidDate),
		r.Front.Kind.Status(),
		r.Back.Kind.Status(),
		r.Front.Error(),
		r.Back.Error(),
	}
}

// WriteCSV writes the header and one row per subject.
func WriteCSV(w io.Writer, stats *idcard.RunStatistics) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range stats.Results {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write row %s: %w", r.Subject, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV to path, replacing any existing file.
func WriteCSVFile(path string, stats *idcard.RunStatistics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	if err := WriteCSV(f, stats); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close CSV file: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(stats.Results)).Msg("CSV file created")
	return nil
}
