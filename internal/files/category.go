// Package files classifies and validates user-selected attachments. Only the
// descriptor (name, size, MIME type) is inspected; file contents are never read.
package files

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the coarse classification of a file that drives size policy.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryUnknown  Category = "unknown"
)

const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
)

// categoryOrder fixes the order in which MIME whitelists are consulted.
var categoryOrder = []Category{CategoryImage, CategoryVideo, CategoryAudio, CategoryDocument}

// Rule is the policy for a single category.
type Rule struct {
	MIMETypes []string
	MaxSize   int64
}

// Policy is the closed table of accepted MIME types and size limits.
type Policy struct {
	Rules map[Category]Rule
	// DocumentExtensions classify a file as a document when its MIME type
	// matched nothing.
	DocumentExtensions []string
	// DefaultMaxSize applies to categories without a rule, including unknown.
	DefaultMaxSize int64
}

// DefaultPolicy returns the stock whitelists: images up to 5 MiB, everything
// else up to 10 MiB.
func DefaultPolicy() Policy {
	return Policy{
		Rules: map[Category]Rule{
			CategoryImage: {
				MIMETypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"},
				MaxSize:   5 * MiB,
			},
			CategoryVideo: {
				MIMETypes: []string{"video/mp4", "video/webm", "video/ogg", "video/avi", "video/mov"},
				MaxSize:   10 * MiB,
			},
			CategoryAudio: {
				MIMETypes: []string{"audio/mp3", "audio/wav", "audio/ogg", "audio/m4a", "audio/aac"},
				MaxSize:   10 * MiB,
			},
			CategoryDocument: {
				MIMETypes: []string{
					"text/plain", "text/markdown", "text/csv",
					"application/pdf",
					"application/msword",
					"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
					"application/vnd.ms-excel",
					"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
					"application/vnd.ms-powerpoint",
					"application/vnd.openxmlformats-officedocument.presentationml.presentation",
				},
				MaxSize: 10 * MiB,
			},
		},
		DocumentExtensions: []string{".txt", ".md", ".csv", ".json", ".js", ".css", ".html", ".xml"},
		DefaultMaxSize:     10 * MiB,
	}
}

// ErrInvalidPolicy is returned by NewValidator for a malformed table.
var ErrInvalidPolicy = errors.New("invalid file policy")

func (p Policy) check() error {
	owner := make(map[string]Category)
	for cat, rule := range p.Rules {
		if cat == CategoryUnknown || !isKnown(cat) {
			return fmt.Errorf("%w: rule for category %q", ErrInvalidPolicy, cat)
		}
		if rule.MaxSize <= 0 {
			return fmt.Errorf("%w: %s size limit must be positive", ErrInvalidPolicy, cat)
		}
		for _, m := range rule.MIMETypes {
			if prev, dup := owner[m]; dup {
				return fmt.Errorf("%w: %q listed for both %s and %s", ErrInvalidPolicy, m, prev, cat)
			}
			owner[m] = cat
		}
	}
	if p.DefaultMaxSize <= 0 {
		return fmt.Errorf("%w: default size limit must be positive", ErrInvalidPolicy)
	}
	for _, ext := range p.DocumentExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalidPolicy, ext)
		}
	}
	return nil
}

func isKnown(c Category) bool {
	for _, k := range categoryOrder {
		if k == c {
			return true
		}
	}
	return false
}
