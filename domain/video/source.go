package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnreadable indicates a video could not be opened or has no readable frames.
var ErrUnreadable = errors.New("video unreadable")

// Info describes an opened video stream.
type Info struct {
	Name       string
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// FramesPerSecond returns the per-second sampling stride, never below one.
func (i Info) FramesPerSecond() int {
	stride := int(i.FPS)
	if stride < 1 {
		return 1
	}
	return stride
}

// FrameAt converts a timestamp in seconds to a frame number.
func (i Info) FrameAt(seconds float64) int {
	return int(seconds * i.FPS)
}

// FrameRange selects frames [Start, End) taking every Stride-th frame.
// A negative End reads until the end of the stream.
type FrameRange struct {
	Start  int
	End    int
	Stride int
}

// Validate checks the range bounds.
func (r FrameRange) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("frame range start %d is negative", r.Start)
	}
	if r.Stride < 1 {
		return fmt.Errorf("frame range stride %d must be positive", r.Stride)
	}
	if r.Bounded() && r.End < r.Start {
		return fmt.Errorf("frame range end %d precedes start %d", r.End, r.Start)
	}
	return nil
}

// Bounded reports whether the range has an explicit end.
func (r FrameRange) Bounded() bool { return r.End >= 0 }

// Count returns the number of frames the range selects, or -1 when unbounded.
func (r FrameRange) Count() int {
	if !r.Bounded() {
		return -1
	}
	if r.End <= r.Start {
		return 0
	}
	return int(math.Ceil(float64(r.End-r.Start) / float64(r.Stride)))
}

// ToEnd returns a range reading from start until the end of the stream.
func ToEnd(start, stride int) FrameRange {
	return FrameRange{Start: start, End: -1, Stride: stride}
}

// FrameReader yields frames in order. Next returns io.EOF after the last frame.
type FrameReader interface {
	Next() (Frame, error)
	Close() error
}

// Video is an open video handle. It is owned by a single caller and must be
// closed once processing of the video ends.
type Video interface {
	Info() Info
	Frames(ctx context.Context, r FrameRange) (FrameReader, error)
	Close() error
}

// Source opens videos by path.
type Source interface {
	Open(ctx context.Context, path string) (Video, error)
}

// ReadRange reads every frame of r from v and closes the reader.
func ReadRange(ctx context.Context, v Video, r FrameRange) (frames []Frame, err error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Count() == 0 {
		return nil, nil
	}
	reader, err := v.Frames(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, reader.Close())
	}()

	if n := r.Count(); n > 0 {
		frames = make([]Frame, 0, n)
	}
	for {
		f, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
