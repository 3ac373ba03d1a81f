// Command cleanvid cleans a local video file with the same ffmpeg profile
// the video cleaner service uses.
//
// It supports the following operations:
//   - process: Transcode a file and write the result next to the caller
//   - profile: Print the ffmpeg command line that would be run
//
// Usage:
//
//	cleanvid <command> [arguments]
//
// Commands:
//
//	process <input> [output]
//	        Copy input into a private scratch directory, run ffmpeg on it
//	        and move the result to output (default: clean.mp4). The scratch
//	        directory is removed whether or not ffmpeg succeeds. On a
//	        terminal the elapsed time is shown while ffmpeg runs.
//
//	profile Print the ffmpeg arguments with placeholder paths.
//
// Environment:
//
//	FFMPEG_PATH        - ffmpeg binary (default: ffmpeg from PATH)
//	TRANSCODE_TIMEOUT  - Per-file limit such as 10m (default: none)
//	LOG_LEVEL          - Transcoder log level (default: warn)
//
// Interrupting the command with Ctrl+C stops ffmpeg and removes all
// intermediate files.
package main
