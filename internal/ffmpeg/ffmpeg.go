// Package ffmpeg converts downloaded camera movies with the ffmpeg binary.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/video-system/go-tether/internal/log"
)

// FFmpeg wraps FFmpeg binary execution
type FFmpeg struct {
	binaryPath string
	probePath  string
	logger     zerolog.Logger
}

// New creates a new FFmpeg wrapper
func New() (*FFmpeg, error) {
	ffmpegPath, err := findBinary("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	ffprobePath, err := findBinary("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &FFmpeg{
		binaryPath: ffmpegPath,
		probePath:  ffprobePath,
		logger:     log.WithComponent("ffmpeg"),
	}, nil
}

// findBinary locates a binary in PATH or common locations
func findBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "linux":
		paths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		paths = []string{
			"C:\\ffmpeg\\bin\\" + name + ".exe",
			"C:\\Program Files\\ffmpeg\\bin\\" + name + ".exe",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// Version returns the FFmpeg version string
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, f.binaryPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "", fmt.Errorf("no version output")
}

// mp4Path returns the conversion target for in, next to it.
func mp4Path(in string) string {
	base := strings.TrimSuffix(in, filepath.Ext(in))
	if strings.EqualFold(filepath.Ext(in), ".mp4") {
		return base + "-h264.mp4"
	}
	return base + ".mp4"
}

// buildConvertArgs builds arguments for a web-friendly H.264 MP4.
func buildConvertArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	}
}

// ConvertToMP4 re-encodes in to H.264 MP4 next to the original and returns
// the new path. The output is written under a temporary name and renamed
// when ffmpeg succeeds.
func (f *FFmpeg) ConvertToMP4(ctx context.Context, in string) (string, error) {
	out := mp4Path(in)
	part := out + ".part"

	cmd := exec.CommandContext(ctx, f.binaryPath, buildConvertArgs(in, part)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("ffmpeg convert: %w\noutput: %s", err, lastLines(output, 5))
	}
	if err := os.Rename(part, out); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("commit converted movie: %w", err)
	}
	return out, nil
}

// MovieProcessor returns a post-processor for downloaded movies that
// converts to MP4 and logs the result's stream info. The camera original
// is removed after a successful conversion unless keepSource is set.
func (f *FFmpeg) MovieProcessor(keepSource bool) func(ctx context.Context, path string) (string, error) {
	return func(ctx context.Context, path string) (string, error) {
		out, err := f.ConvertToMP4(ctx, path)
		if err != nil {
			return "", err
		}
		if !keepSource {
			if err := os.Remove(path); err != nil {
				f.logger.Warn().Err(err).Str("path", path).Msg("remove camera original")
			}
		}

		info, err := f.MovieInfo(ctx, out)
		if err != nil {
			f.logger.Warn().Err(err).Str("path", out).Msg("probe converted movie")
			return out, nil
		}
		f.logger.Info().
			Str("path", out).
			Str("resolution", info.Resolution()).
			Float64("duration", info.Duration).
			Float64("fps", info.Framerate).
			Str("codec", info.Codec).
			Bool("audio", info.HasAudio).
			Msg("movie converted")
		return out, nil
	}
}

func lastLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
