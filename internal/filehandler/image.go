package filehandler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// ImageMetadata holds the EXIF fields recorded alongside a card image.
type ImageMetadata struct {
	DateTaken   time.Time
	CameraMake  string
	CameraModel string
}

// Camera returns "make model", trimmed.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// ExtractImageMetadata reads EXIF metadata using the imagemeta library.
// Date falls back from DateTimeOriginal to CreateDate to ModifyDate.
func ExtractImageMetadata(filePath string) (*ImageMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	exifData, err := imagemeta.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
	}
	return metadata, nil
}

// ProbeImage fills ref's capture time and camera from EXIF when present.
// Images without EXIF (most PNG page renders) are left untouched.
func ProbeImage(ref *idcard.ImageRef) {
	meta, err := ExtractImageMetadata(ref.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", ref.Path).Msg("No EXIF metadata")
		return
	}
	ref.CapturedAt = meta.DateTaken
	ref.Camera = meta.Camera()
	log.Debug().
		Str("path", ref.Path).
		Time("date_taken", ref.CapturedAt).
		Str("camera", ref.Camera).
		Msg("Image EXIF metadata extracted")
}
