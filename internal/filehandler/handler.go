// Package filehandler finds card images on disk and groups them into work items.
//
// A file belongs to a subject by name: "<subject>_front.<ext>" and
// "<subject>_back.<ext>" form a pair. Files without those suffixes fall back to
// side keywords anywhere in the name (正面/front/人像 and 反面/back/国徽).
package filehandler

import (
	"fmt"
	"strings"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// SupportedImageExtensions defines the file extensions the scanner accepts.
var SupportedImageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

const (
	// FrontSuffix and BackSuffix mark the side in a file's base name.
	FrontSuffix = "_front"
	BackSuffix  = "_back"
)

var (
	frontKeywords = []string{"正面", "front", "人像"}
	backKeywords  = []string{"反面", "back", "国徽"}
)

// GetMIMEType returns the MIME type for a file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if mime, ok := SupportedImageExtensions[ext]; ok {
		return mime, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage reports whether the extension is a supported image format.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// DetectSide guesses the card side from keywords in a file name. Front
// keywords win when both appear.
func DetectSide(name string) (idcard.Side, bool) {
	lower := asciiLower(name)
	for _, kw := range frontKeywords {
		if strings.Contains(lower, kw) {
			return idcard.Front, true
		}
	}
	for _, kw := range backKeywords {
		if strings.Contains(lower, kw) {
			return idcard.Back, true
		}
	}
	return "", false
}

// ParseName splits a base name (without extension) into subject and side.
// ok is false when no side can be determined; subject is then the whole name.
func ParseName(stem string) (subject string, side idcard.Side, ok bool) {
	lower := asciiLower(stem)
	switch {
	case strings.HasSuffix(lower, FrontSuffix):
		return stem[:len(stem)-len(FrontSuffix)], idcard.Front, true
	case strings.HasSuffix(lower, BackSuffix):
		return stem[:len(stem)-len(BackSuffix)], idcard.Back, true
	}

	side, ok = DetectSide(stem)
	if !ok {
		return stem, "", false
	}
	keywords := frontKeywords
	if side == idcard.Back {
		keywords = backKeywords
	}
	subject = stem
	for _, kw := range keywords {
		subject = removeFold(subject, kw)
	}
	subject = strings.Trim(subject, "_- .")
	if subject == "" {
		subject = stem
	}
	return subject, side, true
}

// removeFold deletes every ASCII-case-insensitive occurrence of kw from s.
func removeFold(s, kw string) string {
	kw = asciiLower(kw)
	for {
		i := strings.Index(asciiLower(s), kw)
		if i < 0 {
			return s
		}
		s = s[:i] + s[i+len(kw):]
	}
}

// asciiLower lowercases A-Z only, so byte offsets match the input.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
