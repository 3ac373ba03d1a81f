// Package upload receives a single video file from a multipart request.
//
// The body is streamed part by part with [http.Request.MultipartReader], so
// nothing is buffered in memory or spooled to a temporary multipart file.
// Validation happens before any byte reaches disk where possible:
//
//   - Content-Length over the limit is rejected without reading the body
//   - the part's declared Content-Type must be video/*
//   - the first 3 KiB are sniffed with mimetype; recognised non-video
//     content is rejected, unknown binary is left to the transcoder
//
// An accepted file is written to an input file of the scratch store. Size
// overruns and write failures remove the partial file before returning.
//
// Errors are sentinels matched with errors.Is. ErrNoFileProvided,
// ErrFileTooLarge and ErrInvalidMimeType are client errors (see
// IsValidation); ErrStorage and ErrReadFailed are server-side.
package upload
