package service

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
	ErrTooManyFiles    = errors.New("too many files")
)

// extension -> canonical media type
var knownExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
}

// FileInfo describes an incoming file before a task exists for it.
// Head holds the first bytes of the content for sniffing and may be empty.
type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	Head        []byte
}

// AdmissionPolicy decides which files may enter the tracker
type AdmissionPolicy struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string // exact types or "family/*"
}

// Check validates a single file and returns its resolved media type.
func (p *AdmissionPolicy) Check(f FileInfo) (string, error) {
	if f.Size <= 0 {
		return "", ErrEmptyFile
	}
	if p.MaxFileSize > 0 && f.Size > p.MaxFileSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	expected, ok := knownExtensions[ext]
	if !ok {
		return "", ErrUnsupportedType
	}

	contentType := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = expected
	} else if contentType != expected {
		return "", ErrUnsupportedType
	}

	// Sniff the content when we have it; unknown bytes fall through
	if len(f.Head) > 0 {
		detected := http.DetectContentType(f.Head)
		if i := strings.Index(detected, ";"); i >= 0 {
			detected = detected[:i]
		}
		if detected != "application/octet-stream" && detected != expected {
			return "", ErrUnsupportedType
		}
	}

	if !p.allows(contentType) {
		return "", ErrUnsupportedType
	}
	return contentType, nil
}

func (p *AdmissionPolicy) allows(contentType string) bool {
	for _, allowed := range p.AllowedTypes {
		allowed = strings.ToLower(allowed)
		if family, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(contentType, family+"/") {
				return true
			}
			continue
		}
		if allowed == contentType {
			return true
		}
	}
	return false
}
