package upload

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the upload is inspected before anything is written.
const sniffLen = 3072

// unknownType is what mimetype reports for content it does not recognise.
const unknownType = "application/octet-stream"

// Containers that carry video but are not registered under video/.
var videoContainers = map[string]bool{
	"application/ogg":              true,
	"application/mxf":              true,
	"application/vnd.rn-realmedia": true,
}

// declaredVideo reports whether a part's Content-Type header names a video type.
func declaredVideo(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	return strings.HasPrefix(strings.ToLower(mediaType), "video/")
}

// detectVideo sniffs head and reports the detected type and whether it may
// be handed to the transcoder. Unrecognised binaries are allowed through;
// anything recognised as a non-video format is not.
func detectVideo(head []byte) (string, bool) {
	detected := mimetype.Detect(head)

	for m := detected; m != nil; m = m.Parent() {
		if m.Is(unknownType) {
			// Reached the root without finding a video ancestor.
			return detected.String(), detected.Is(unknownType)
		}
		base := m.String()
		if i := strings.IndexByte(base, ';'); i >= 0 {
			base = base[:i]
		}
		if strings.HasPrefix(base, "video/") || videoContainers[base] {
			return detected.String(), true
		}
	}
	return detected.String(), false
}
