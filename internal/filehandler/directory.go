package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// ScanOptions configures directory scanning behavior.
type ScanOptions struct {
	// MaxDepth limits recursion depth. 0 = unlimited, 1 = top-level only.
	MaxDepth int

	// Limit caps the number of images considered. 0 = unlimited.
	Limit int

	// ReadMetadata probes each image for EXIF capture time and camera.
	ReadMetadata bool
}

// ScanDirectory scans a directory for card images with default options and
// groups them by subject.
func ScanDirectory(dirPath string) ([]idcard.WorkItem, error) {
	return ScanDirectoryWithOptions(dirPath, ScanOptions{MaxDepth: 1})
}

// ScanDirectoryWithOptions walks dirPath, collects supported images and groups
// them into one WorkItem per subject, sorted by subject. Symlinks to files are
// followed; symlinks to directories are skipped to prevent infinite loops.
func ScanDirectoryWithOptions(dirPath string, opts ScanOptions) ([]idcard.WorkItem, error) {
	log.Info().
		Str("path", dirPath).
		Int("max_depth", opts.MaxDepth).
		Int("limit", opts.Limit).
		Msg("Scanning directory for card images")

	paths, limitReached, err := listImages(dirPath, opts)
	if err != nil {
		return nil, err
	}

	items := GroupImages(paths)
	if opts.ReadMetadata {
		for i := range items {
			for _, side := range idcard.Sides {
				if ref := items[i].Image(side); ref != nil {
					ProbeImage(ref)
				}
			}
		}
	}

	logEvent := log.Info().
		Int("total_images", len(paths)).
		Int("subjects", len(items)).
		Str("directory", dirPath)
	if limitReached {
		logEvent.Bool("limit_reached", true)
	}
	logEvent.Msg("Directory scan complete")

	return items, nil
}

// GroupImages pairs image paths by subject. When a subject has more than one
// image for a side, the first path in sorted order wins. Files whose side
// cannot be determined still produce a subject with both sides missing.
func GroupImages(paths []string) []idcard.WorkItem {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	bySubject := make(map[string]*idcard.WorkItem)
	var order []string
	for _, p := range sorted {
		base := filepath.Base(p)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		subject, side, ok := ParseName(stem)

		item, exists := bySubject[subject]
		if !exists {
			item = &idcard.WorkItem{Subject: subject}
			bySubject[subject] = item
			order = append(order, subject)
		}
		if !ok {
			log.Warn().Str("file", base).Msg("Cannot determine card side from file name")
			continue
		}

		ref := &idcard.ImageRef{Path: p, Side: side}
		switch {
		case side == idcard.Front && item.Front == nil:
			item.Front = ref
		case side == idcard.Back && item.Back == nil:
			item.Back = ref
		default:
			log.Warn().
				Str("subject", subject).
				Str("side", side.Label()).
				Str("file", base).
				Msg("Duplicate image for side, ignoring")
		}
	}

	sort.Strings(order)
	items := make([]idcard.WorkItem, 0, len(order))
	for _, s := range order {
		items = append(items, *bySubject[s])
	}
	return items
}

// listImages returns supported image paths under dirPath.
func listImages(dirPath string, opts ScanOptions) ([]string, bool, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, false, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	// Absolute path for consistent depth calculation
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get absolute path: %w", err)
	}
	baseDepth := strings.Count(absPath, string(os.PathSeparator))

	var paths []string
	limitReached := false

	err = filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth > 0 && path != absPath {
				if strings.Count(path, string(os.PathSeparator))-baseDepth >= opts.MaxDepth {
					return fs.SkipDir
				}
			}
			if path != absPath && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			targetInfo, err := os.Stat(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to resolve symlink, skipping")
				return nil
			}
			if targetInfo.IsDir() {
				log.Debug().Str("path", path).Msg("Skipping symlink to directory")
				return nil
			}
		}

		if !IsImage(filepath.Ext(d.Name())) {
			return nil
		}
		if opts.Limit > 0 && len(paths) >= opts.Limit {
			limitReached = true
			return fs.SkipAll
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to walk directory: %w", err)
	}
	return paths, limitReached, nil
}
