package transcoder

import (
	"fmt"
	"strconv"
)

// Profile is the fixed encoding policy applied to every upload. It is tuned
// for small containers: single-threaded x264 at the fastest preset, output
// capped at 720p.
type Profile struct {
	MaxWidth  int
	MaxHeight int

	// Pixels trimmed from the right and bottom edges after scaling.
	CropRight  int
	CropBottom int

	VideoCodec    string
	Preset        string
	CRF           int
	Threads       int
	FilterThreads int

	MaxMuxingQueueSize int

	AudioCodec   string
	AudioBitrate string

	MovFlags string
}

// DefaultProfile returns the production encoding profile.
func DefaultProfile() Profile {
	return Profile{
		MaxWidth:           1280,
		MaxHeight:          720,
		CropRight:          200,
		CropBottom:         100,
		VideoCodec:         "libx264",
		Preset:             "ultrafast",
		CRF:                28,
		Threads:            1,
		FilterThreads:      1,
		MaxMuxingQueueSize: 1024,
		AudioCodec:         "aac",
		AudioBitrate:       "128k",
		MovFlags:           "+faststart",
	}
}

func (p Profile) isZero() bool {
	return p.VideoCodec == ""
}

// Filter returns the video filter graph: downscale into the bounding box
// without upscaling, keep even dimensions, then crop the fixed margin from
// the top-left origin.
func (p Profile) Filter() string {
	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2",
		p.MaxWidth, p.MaxHeight)
	crop := fmt.Sprintf("crop=in_w-%d:in_h-%d:0:0", p.CropRight, p.CropBottom)
	return scale + "," + crop
}

// Args builds the ffmpeg argument vector for one job. The output path is
// always the last argument.
func (p Profile) Args(input, output string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-loglevel", "error",
		"-i", input,
		"-vf", p.Filter(),
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-threads", strconv.Itoa(p.Threads),
		"-filter_threads", strconv.Itoa(p.FilterThreads),
		"-max_muxing_queue_size", strconv.Itoa(p.MaxMuxingQueueSize),
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-movflags", p.MovFlags,
		output,
	}
}
