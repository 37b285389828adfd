package files

import (
	"errors"
	"fmt"
	"strings"
)

// FileRef describes a selected file without its bytes.
type FileRef struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

// ErrValidation marks a file that violates the attachment policy.
var ErrValidation = errors.New("file validation failed")

// ValidationError carries every reason a file was rejected.
type ValidationError struct {
	Category Category
	Reasons  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationResult is the outcome of Validate. Errors holds all applicable
// reasons, not just the first.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	Category  Category `json:"category"`
	SizeBytes int64    `json:"size"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Category: r.Category, Reasons: r.Errors}
}

// Validator applies a Policy. It is immutable and safe for concurrent use.
type Validator struct {
	byMIME     map[string]Category
	extensions []string
	limits     map[Category]int64
	fallback   int64
}

// NewValidator checks the policy table and builds lookup indexes from it.
func NewValidator(p Policy) (*Validator, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	v := &Validator{
		byMIME:   make(map[string]Category),
		limits:   make(map[Category]int64, len(p.Rules)),
		fallback: p.DefaultMaxSize,
	}
	for cat, rule := range p.Rules {
		v.limits[cat] = rule.MaxSize
		for _, m := range rule.MIMETypes {
			v.byMIME[m] = cat
		}
	}
	for _, ext := range p.DocumentExtensions {
		v.extensions = append(v.extensions, strings.ToLower(ext))
	}
	return v, nil
}

var defaultValidator = func() *Validator {
	v, err := NewValidator(DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return v
}()

// Default returns the validator for DefaultPolicy.
func Default() *Validator { return defaultValidator }

// Classify resolves the category: an exact MIME match first, then the document
// extension allowlist, otherwise unknown.
func (v *Validator) Classify(f FileRef) Category {
	if cat, ok := v.byMIME[f.MimeType]; ok {
		return cat
	}
	if v.hasDocumentExtension(f.Name) {
		return CategoryDocument
	}
	return CategoryUnknown
}

func (v *Validator) hasDocumentExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range v.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// MaxSize returns the size limit in bytes for a category.
func (v *Validator) MaxSize(c Category) int64 {
	if limit, ok := v.limits[c]; ok {
		return limit
	}
	return v.fallback
}

// Validate checks type, size and emptiness independently and reports every
// failure.
func (v *Validator) Validate(f FileRef) ValidationResult {
	cat := v.Classify(f)
	errs := []string{}

	if cat == CategoryUnknown {
		errs = append(errs, fmt.Sprintf("file type %q is not supported", f.MimeType))
	}
	if limit := v.MaxSize(cat); f.SizeBytes > limit {
		errs = append(errs, fmt.Sprintf("size exceeds %s limit", limitLabel(limit)))
	}
	if f.SizeBytes == 0 {
		errs = append(errs, "file is empty")
	}
	if f.SizeBytes < 0 {
		errs = append(errs, "file size is negative")
	}

	return ValidationResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Category:  cat,
		SizeBytes: f.SizeBytes,
	}
}

// Classify uses the default policy.
func Classify(f FileRef) Category { return defaultValidator.Classify(f) }

// Validate uses the default policy.
func Validate(f FileRef) ValidationResult { return defaultValidator.Validate(f) }

func limitLabel(n int64) string {
	if n%MiB == 0 {
		return fmt.Sprintf("%dMB", n/MiB)
	}
	return FormatSize(n)
}
