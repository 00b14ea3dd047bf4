package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// AuditEntry describes one source document or one orphaned image set.
type AuditEntry struct {
	Name    string
	Source  string
	Found   []idcard.Side
	Missing []idcard.Side
	Files   []string
}

// AuditReport compares source documents against extracted card images.
type AuditReport struct {
	Inputs            int
	Complete          []AuditEntry
	CompletelyMissing []AuditEntry
	Incomplete        []AuditEntry
	ExtraOutputs      []AuditEntry
}

// Skipped returns the number of inputs that did not yield both sides.
func (r *AuditReport) Skipped() int {
	return len(r.CompletelyMissing) + len(r.Incomplete)
}

// Audit matches every PDF in pdfDir with "<stem>_front"/"<stem>_back" images
// in imageDir. Only the top level of each directory is examined.
func Audit(pdfDir, imageDir string) (*AuditReport, error) {
	pdfs, err := listByExt(pdfDir, func(ext string) bool { return ext == ".pdf" })
	if err != nil {
		return nil, err
	}
	images, err := listByExt(imageDir, IsImage)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]*AuditEntry)
	for _, p := range images {
		base := filepath.Base(p)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		name, side, ok := stem, idcard.Side(""), false
		lower := asciiLower(stem)
		switch {
		case strings.HasSuffix(lower, FrontSuffix):
			name, side, ok = stem[:len(stem)-len(FrontSuffix)], idcard.Front, true
		case strings.HasSuffix(lower, BackSuffix):
			name, side, ok = stem[:len(stem)-len(BackSuffix)], idcard.Back, true
		}
		e := outputs[name]
		if e == nil {
			e = &AuditEntry{Name: name}
			outputs[name] = e
		}
		e.Files = append(e.Files, base)
		if ok && !hasSide(e.Found, side) {
			e.Found = append(e.Found, side)
		}
	}

	report := &AuditReport{Inputs: len(pdfs)}
	inputs := make(map[string]bool, len(pdfs))
	for _, p := range pdfs {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		inputs[name] = true

		entry := AuditEntry{Name: name, Source: base}
		if out, ok := outputs[name]; ok {
			entry.Found = out.Found
			entry.Files = out.Files
		}
		for _, side := range idcard.Sides {
			if !hasSide(entry.Found, side) {
				entry.Missing = append(entry.Missing, side)
			}
		}

		switch {
		case len(entry.Missing) == 0:
			report.Complete = append(report.Complete, entry)
		case len(entry.Files) == 0:
			report.CompletelyMissing = append(report.CompletelyMissing, entry)
		default:
			report.Incomplete = append(report.Incomplete, entry)
		}
	}

	for name, out := range outputs {
		if !inputs[name] {
			report.ExtraOutputs = append(report.ExtraOutputs, *out)
		}
	}
	sort.Slice(report.ExtraOutputs, func(i, j int) bool {
		return report.ExtraOutputs[i].Name < report.ExtraOutputs[j].Name
	})
	return report, nil
}

func hasSide(sides []idcard.Side, side idcard.Side) bool {
	for _, s := range sides {
		if s == side {
			return true
		}
	}
	return false
}

// listByExt returns sorted top-level files of dir accepted by match.
func listByExt(dir string, match func(ext string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if match(strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
