// Package video defines frames, clips and the frame source used to cut clips
// out of a video corpus.
package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidFrame indicates a frame buffer does not match its dimensions.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a single decoded video frame stored as packed RGB24 pixels.
type Frame struct {
	index  int
	width  int
	height int
	pix    []byte
}

// NewFrame creates a Frame. The pixel buffer must hold width*height*3 bytes.
func NewFrame(index, width, height int, pix []byte) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, width, height)
	}
	if len(pix) != width*height*3 {
		return Frame{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFrame, width*height*3, len(pix))
	}
	return Frame{index: index, width: width, height: height, pix: pix}, nil
}

// Index returns the absolute frame number within its video.
func (f Frame) Index() int { return f.index }

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.height }

// Pix returns the packed RGB24 buffer.
func (f Frame) Pix() []byte { return f.pix }

// Image converts the frame to an image.Image.
func (f Frame) Image() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			o := (y*f.width + x) * 3
			img.SetRGBA(x, y, color.RGBA{R: f.pix[o], G: f.pix[o+1], B: f.pix[o+2], A: 0xff})
		}
	}
	return img
}
