package audio

import (
	"context"
	"path/filepath"
	"strings"
)

// Converter normalizes a legacy-format audio file into MP3. Convert returns
// the path of the produced file; on error the input file is left untouched.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// IsLegacyFormat reports whether the upload needs conversion before it can
// be streamed everywhere. Only AMR qualifies; every other audio type is
// accepted as-is.
func IsLegacyFormat(filename, mimeType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".amr") {
		return true
	}
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	return mime == "audio/amr" || strings.HasPrefix(mime, "audio/amr-")
}
