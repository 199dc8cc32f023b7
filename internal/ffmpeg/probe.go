package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// probeReport is the part of ffprobe's JSON report MovieInfo reads.
type probeReport struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // video, audio
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FrameRate    string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

func (f *FFmpeg) probe(ctx context.Context, path string) (*probeReport, error) {
	cmd := exec.CommandContext(ctx, f.probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var report probeReport
	if err := json.Unmarshal(output, &report); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &report, nil
}

// VideoInfo summarises a movie: its first video stream, whether it carries
// sound and its length in seconds.
type VideoInfo struct {
	Width     int
	Height    int
	Duration  float64
	Framerate float64
	Codec     string
	HasAudio  bool
}

// MovieInfo probes path with ffprobe and summarises it
func (f *FFmpeg) MovieInfo(ctx context.Context, path string) (*VideoInfo, error) {
	report, err := f.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return summarize(report), nil
}

func summarize(report *probeReport) *VideoInfo {
	info := &VideoInfo{}
	seenVideo := false

	for _, stream := range report.Streams {
		switch stream.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			info.Width, info.Height = stream.Width, stream.Height
			info.Codec = stream.CodecName

			// MJPEG movies from some bodies report "0/0" as the average.
			if stream.AvgFrameRate != "" && stream.AvgFrameRate != "0/0" {
				info.Framerate = parseFramerate(stream.AvgFrameRate)
			} else {
				info.Framerate = parseFramerate(stream.FrameRate)
			}
		}
	}

	if report.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(report.Format.Duration, 64)
	}
	return info
}

// parseFramerate parses a framerate string like "30/1" or "30000/1001"
func parseFramerate(s string) float64 {
	var num, den int
	if n, _ := fmt.Sscanf(s, "%d/%d", &num, &den); n == 2 && den != 0 {
		return float64(num) / float64(den)
	}
	// Try parsing as plain number
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return 0
}

// Resolution returns resolution string like "1920x1080"
func (v *VideoInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}
