// Package media implements upload intake: the file type and size predicate and
// persisting accepted files as media assets.
package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/sceneswitch/internal/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
)

// ValidationError reports why intake rejected a file. It is never fatal to a batch.
type ValidationError struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.FileName, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator is the intake predicate.
type Validator struct {
	allowed  map[string]bool
	maxBytes int64
}

func NewValidator(cfg config.UploadConfig) *Validator {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Validator{allowed: allowed, maxBytes: cfg.MaxBytes}
}

// Validate checks a file and returns its resolved MIME type.
// declaredType may be empty or generic, in which case the extension decides.
func (v *Validator) Validate(name string, size int64, declaredType string) (string, error) {
	mimeType := resolveType(name, declaredType)
	switch {
	case !v.allowed[mimeType]:
		return "", &ValidationError{
			FileName: name,
			Reason:   fmt.Sprintf("type %s is not accepted", mimeType),
			Err:      ErrUnsupportedType,
		}
	case size == 0:
		return "", &ValidationError{FileName: name, Reason: "file is empty", Err: ErrEmptyFile}
	case size > v.maxBytes:
		return "", &ValidationError{
			FileName: name,
			Reason:   fmt.Sprintf("size %d exceeds limit of %d bytes", size, v.maxBytes),
			Err:      ErrTooLarge,
		}
	}
	return mimeType, nil
}

func resolveType(name, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return TypeFromExtension(name)
}

// TypeFromExtension maps a file name to a MIME type for clients that send none.
func TypeFromExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov", ".qt":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
