package scratch

import (
	"path"
	"strings"
)

const (
	// MaxNameBytes bounds the sanitized portion of a scratch file name.
	MaxNameBytes = 100

	// maxKeptExtBytes is the longest extension (dot included) preserved on truncation.
	maxKeptExtBytes = 10

	fallbackName = "upload"
)

// SanitizeFilename reduces a client-supplied file name to a safe single
// path element.
//
// The transform is applied in order:
//  1. only the final element is kept, splitting on both '/' and '\'
//  2. every byte outside [A-Za-z0-9._-] becomes '_'
//  3. leading dots become '_', so the result is never hidden, "." or ".."
//  4. the result is cut to MaxNameBytes, keeping an extension of up to 10 bytes
//  5. an empty result becomes "upload"
//
// The output is deterministic and SanitizeFilename is idempotent.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()

	leading := 0
	for leading < len(s) && s[leading] == '.' {
		leading++
	}
	if leading > 0 {
		s = strings.Repeat("_", leading) + s[leading:]
	}

	if len(s) > MaxNameBytes {
		ext := path.Ext(s)
		if ext != "" && len(ext) <= maxKeptExtBytes {
			s = s[:MaxNameBytes-len(ext)] + ext
		} else {
			s = s[:MaxNameBytes]
		}
	}

	if s == "" {
		return fallbackName
	}
	return s
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
