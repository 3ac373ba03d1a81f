// Package scratch manages the transient files of the processing pipeline.
//
// A Store owns two directories: uploads land in the input directory and
// transcoded artifacts are written to the output directory. Every file gets
// a collision-free name of the form
//
//	<unix-millis>-<uuid>-<sanitized original name>
//
// and is created with O_EXCL, so an existing file is never reused. Files
// are owned by a single request and removed with Delete, which tolerates
// files that are already gone. Purge sweeps both directories and is run at
// startup and shutdown so a crash never leaves data behind.
package scratch
