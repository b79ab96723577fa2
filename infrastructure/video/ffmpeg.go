// Package video decodes videos into RGB frames using the ffmpeg command-line tools.
package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	domainvideo "github.com/helixml/vidembed/domain/video"
)

// FFmpeg opens videos with ffprobe and decodes them with ffmpeg.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// FFmpegOption configures FFmpeg.
type FFmpegOption func(*FFmpeg)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) FFmpegOption {
	return func(f *FFmpeg) {
		if ffmpeg != "" {
			f.ffmpeg = ffmpeg
		}
		if ffprobe != "" {
			f.ffprobe = ffprobe
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FFmpegOption {
	return func(f *FFmpeg) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFFmpeg creates a video source.
func NewFFmpeg(opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{ffmpeg: "ffmpeg", ffprobe: "ffprobe", logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Available reports whether both binaries are on the PATH.
func (f *FFmpeg) Available() error {
	for _, bin := range []string{f.ffmpeg, f.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// Open probes path. Files without a readable video stream fail with
// video.ErrUnreadable.
func (f *FFmpeg) Open(ctx context.Context, path string) (domainvideo.Video, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffprobe %s: %v: %s", domainvideo.ErrUnreadable, path, err, strings.TrimSpace(stderr.String()))
	}

	info, err := parseProbe(filepath.Base(path), out)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("opened video",
		slog.String("video", info.Name),
		slog.Float64("fps", info.FPS),
		slog.Int("frames", info.FrameCount),
	)
	return &ffmpegVideo{source: f, path: path, info: info}, nil
}

type ffmpegVideo struct {
	source *FFmpeg
	path   string
	info   domainvideo.Info

	mu      sync.Mutex
	readers []*frameReader
	closed  bool
}

func (v *ffmpegVideo) Info() domainvideo.Info { return v.info }

// Frames starts a decoder for r.
func (v *ffmpegVideo) Frames(ctx context.Context, r domainvideo.FrameRange) (domainvideo.FrameReader, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, fmt.Errorf("%s: video is closed", v.info.Name)
	}

	cmd := exec.CommandContext(ctx, v.source.ffmpeg, decodeArgs(v.path, r, v.info.FPS)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	reader := &frameReader{
		cmd:       cmd,
		stdout:    bufio.NewReaderSize(stdout, v.info.Width*v.info.Height*3),
		stderr:    stderr,
		width:     v.info.Width,
		height:    v.info.Height,
		next:      r.Start,
		stride:    r.Stride,
		remaining: r.Count(),
	}
	reader.release = func() { v.forget(reader) }
	v.readers = append(v.readers, reader)
	return reader, nil
}

// forget drops a finished reader so its frame buffer can be collected.
func (v *ffmpegVideo) forget(r *frameReader) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readers = slices.DeleteFunc(v.readers, func(o *frameReader) bool { return o == r })
}

// Close stops any decoder still running.
func (v *ffmpegVideo) Close() error {
	v.mu.Lock()
	readers := v.readers
	v.readers = nil
	v.closed = true
	v.mu.Unlock()

	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// decodeArgs builds the ffmpeg invocation streaming the frames of r as rgb24.
// A non-zero start seeks the input first, so frame numbers in the select
// filter count from the seek point.
func decodeArgs(path string, r domainvideo.FrameRange, fps float64) []string {
	args := []string{"-v", "error", "-nostdin"}
	offset := 0
	if r.Start > 0 && fps > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(r.Start)/fps, 'f', 6, 64))
		offset = r.Start
	}

	cond := fmt.Sprintf("gte(n\\,%d)", r.Start-offset)
	if r.Bounded() {
		cond += fmt.Sprintf("*lt(n\\,%d)", r.End-offset)
	}
	if r.Stride > 1 {
		cond += fmt.Sprintf("*not(mod(n-%d\\,%d))", r.Start-offset, r.Stride)
	}
	return append(args,
		"-i", path,
		"-vf", "select="+cond,
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
}

type frameReader struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *bytes.Buffer
	width  int
	height int

	next      int
	stride    int
	remaining int

	once    sync.Once
	waitErr error
	release func()
}

// Next returns the next frame, or io.EOF once the range is exhausted.
func (r *frameReader) Next() (domainvideo.Frame, error) {
	if r.remaining == 0 {
		return domainvideo.Frame{}, io.EOF
	}

	pix := make([]byte, r.width*r.height*3)
	if _, err := io.ReadFull(r.stdout, pix); err != nil {
		if errors.Is(err, io.EOF) {
			if werr := r.wait(); werr != nil {
				return domainvideo.Frame{}, werr
			}
			return domainvideo.Frame{}, io.EOF
		}
		return domainvideo.Frame{}, fmt.Errorf("read frame %d: %w", r.next, err)
	}

	frame, err := domainvideo.NewFrame(r.next, r.width, r.height, pix)
	if err != nil {
		return domainvideo.Frame{}, err
	}
	r.next += r.stride
	if r.remaining > 0 {
		r.remaining--
	}
	return frame, nil
}

// Close stops the decoder. Stopping early is not an error.
func (r *frameReader) Close() error {
	r.once.Do(func() {
		if r.cmd.ProcessState == nil && r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		_ = r.cmd.Wait()
		r.done()
	})
	return nil
}

func (r *frameReader) wait() error {
	r.once.Do(func() {
		if err := r.cmd.Wait(); err != nil {
			r.waitErr = fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(r.stderr.String()))
		}
		r.done()
	})
	return r.waitErr
}

func (r *frameReader) done() {
	if r.release != nil {
		r.release()
	}
}

var (
	_ domainvideo.Source      = (*FFmpeg)(nil)
	_ domainvideo.FrameReader = (*frameReader)(nil)
)
