package files

import (
	"fmt"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SelectionLimit is the hard cap applied when a file is chosen, before the
// category-specific check at send time.
const SelectionLimit = 10 * MiB

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with 1024-based units and at most two
// decimals, e.g. 1536 -> "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FromPath builds a FileRef for a local file. The MIME type comes from the
// extension and may be empty.
func FromPath(path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRef{}, err
	}
	if info.IsDir() {
		return FileRef{}, fmt.Errorf("%s is a directory", path)
	}
	return FileRef{
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
		MimeType:  mimeFromName(path),
	}, nil
}

func mimeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil {
		return ""
	}
	return mt
}

// CheckSelection rejects files over SelectionLimit at pick time.
func CheckSelection(f FileRef) error {
	if f.SizeBytes > SelectionLimit {
		return &ValidationError{
			Category: Classify(f),
			Reasons:  []string{fmt.Sprintf("file size must be less than %s", limitLabel(SelectionLimit))},
		}
	}
	return nil
}

// SupportedTypesSummary lists accepted file kinds for help output.
func SupportedTypesSummary() string {
	return strings.Join([]string{
		"Images: JPEG, PNG, GIF, WebP, SVG",
		"Documents: PDF, Word, Excel, PowerPoint, Text files",
		"Media: MP4, WebM, MP3, WAV",
		"Code: JavaScript, CSS, HTML, JSON, Markdown",
	}, "\n")
}
