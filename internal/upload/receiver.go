package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
	"video-cleaner/internal/scratch"
)

const (
	// DefaultFieldName is the multipart field carrying the video.
	DefaultFieldName = "video"

	// DefaultMaxBytes is the largest accepted file (50 MiB).
	DefaultMaxBytes int64 = 50 << 20

	// multipartSlack allows for boundaries and part headers on top of MaxBytes.
	multipartSlack int64 = 1 << 20
)

// Validation errors, reported to the client as 400.
var (
	ErrNoFileProvided  = errors.New("no video file provided")
	ErrFileTooLarge    = errors.New("file exceeds the maximum upload size")
	ErrInvalidMimeType = errors.New("uploaded file is not a video")
)

// Server-side failures.
var (
	// ErrStorage means the scratch file could not be created or written.
	ErrStorage = errors.New("failed to store upload")

	// ErrReadFailed means the request body broke off mid-transfer.
	ErrReadFailed = errors.New("failed to read upload")
)

// IsValidation reports whether err is caused by the client's input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFileProvided) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrInvalidMimeType)
}

// Options configures a Receiver.
type Options struct {
	FieldName string
	MaxBytes  int64
}

// DefaultOptions returns the production receiver configuration.
func DefaultOptions() Options {
	return Options{
		FieldName: DefaultFieldName,
		MaxBytes:  DefaultMaxBytes,
	}
}

// Upload is an accepted file, already persisted as an input scratch file.
type Upload struct {
	FieldName    string
	OriginalName string
	ContentType  string
	DetectedType string
	Size         int64
	File         scratch.File
}

// Receiver streams a multipart upload into the scratch store.
type Receiver struct {
	store *scratch.Store
	opts  Options
}

// NewReceiver creates a Receiver. Zero option fields take their defaults.
func NewReceiver(store *scratch.Store, opts Options) *Receiver {
	if opts.FieldName == "" {
		opts.FieldName = DefaultFieldName
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Receiver{store: store, opts: opts}
}

// MaxBytes returns the configured size limit.
func (rc *Receiver) MaxBytes() int64 {
	return rc.opts.MaxBytes
}

// Receive reads the request body and stores the single file found under the
// configured field. On success exactly one input scratch file exists and is
// owned by the caller; on any error none does.
func (rc *Receiver) Receive(w http.ResponseWriter, r *http.Request) (*Upload, error) {
	up, err := rc.receive(w, r)
	metrics.UploadsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		metrics.UploadBytes.Observe(float64(up.Size))
	}
	return up, err
}

func (rc *Receiver) receive(w http.ResponseWriter, r *http.Request) (*Upload, error) {
	limit := rc.opts.MaxBytes + multipartSlack
	if r.ContentLength > limit {
		return nil, fmt.Errorf("%w: content length %d", ErrFileTooLarge, r.ContentLength)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFileProvided, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFileProvided
		}
		if err != nil {
			return nil, classifyRead(err, ErrNoFileProvided)
		}

		if part.FormName() != rc.opts.FieldName || part.FileName() == "" {
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, classifyRead(err, ErrNoFileProvided)
			}
			continue
		}

		return rc.storePart(part.FileName(), part.Header.Get("Content-Type"), part)
	}
}

func (rc *Receiver) storePart(originalName, contentType string, body io.Reader) (*Upload, error) {
	if !declaredVideo(contentType) {
		return nil, fmt.Errorf("%w: declared %q", ErrInvalidMimeType, contentType)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, classifyRead(err, ErrReadFailed)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrNoFileProvided)
	}
	if int64(n) > rc.opts.MaxBytes {
		return nil, ErrFileTooLarge
	}

	detected, ok := detectVideo(head)
	if !ok {
		return nil, fmt.Errorf("%w: detected %s", ErrInvalidMimeType, detected)
	}

	f, file, err := rc.store.CreateInput(originalName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	size, err := rc.copyInto(f, head, body)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("%w: %w", ErrStorage, closeErr)
	}
	if err != nil {
		if delErr := rc.store.Delete(file.Path); delErr != nil {
			logging.Warn("failed to remove partial upload %s: %v", file.Path, delErr)
		}
		return nil, err
	}

	logging.Debug("Stored upload %q as %s (%d bytes, declared %s, detected %s)",
		originalName, file.Name, size, contentType, detected)

	return &Upload{
		FieldName:    rc.opts.FieldName,
		OriginalName: originalName,
		ContentType:  contentType,
		DetectedType: detected,
		Size:         size,
		File:         file,
	}, nil
}

// copyInto writes head and the rest of body to dst, enforcing MaxBytes.
func (rc *Receiver) copyInto(dst io.Writer, head []byte, body io.Reader) (int64, error) {
	if _, err := dst.Write(head); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	remaining := rc.opts.MaxBytes - int64(len(head))
	src := &trackingReader{r: io.LimitReader(body, remaining+1)}

	copied, err := io.Copy(dst, src)
	size := int64(len(head)) + copied
	if err != nil {
		if src.err != nil {
			return size, classifyRead(src.err, ErrReadFailed)
		}
		return size, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if size > rc.opts.MaxBytes {
		return size, ErrFileTooLarge
	}
	return size, nil
}

// trackingReader remembers the last non-EOF read error so copy failures can
// be attributed to the client or to the disk.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

// classifyRead maps a body read error, turning the MaxBytesReader limit into
// ErrFileTooLarge and everything else into fallback.
func classifyRead(err, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: request body over %d bytes", ErrFileTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %w", fallback, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrNoFileProvided):
		return "no_file"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidMimeType):
		return "invalid_mime"
	default:
		return "storage_error"
	}
}
