package video

// Clip is an ordered, finite run of frames cut from one video.
// EndFrame is exclusive.
type Clip struct {
	video      string
	startFrame int
	endFrame   int
	frames     []Frame
}

// NewClip creates a Clip.
func NewClip(video string, startFrame, endFrame int, frames []Frame) Clip {
	f := make([]Frame, len(frames))
	copy(f, frames)
	return Clip{
		video:      video,
		startFrame: startFrame,
		endFrame:   endFrame,
		frames:     f,
	}
}

// Video returns the owning video identifier.
func (c Clip) Video() string { return c.video }

// StartFrame returns the first frame number of the clip range.
func (c Clip) StartFrame() int { return c.startFrame }

// EndFrame returns the exclusive end of the clip range.
func (c Clip) EndFrame() int { return c.endFrame }

// Frames returns the sampled frames in order.
func (c Clip) Frames() []Frame { return c.frames }

// Len returns the number of sampled frames.
func (c Clip) Len() int { return len(c.frames) }

// IsEmpty reports whether no frame could be sampled for the clip.
func (c Clip) IsEmpty() bool { return len(c.frames) == 0 }
