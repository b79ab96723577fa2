package video

// Annotation is one natural-language description aligned with a time range
// of a video.
type Annotation struct {
	Video     string
	Sentence  string
	Split     string
	ClassName string
	Anomaly   bool
	Start     float64
	End       float64
	Duration  float64
}

// Frames converts the annotated time range into a frame range for a video
// with the given info, sampling one frame per second.
func (a Annotation) Frames(info Info) FrameRange {
	return FrameRange{
		Start:  info.FrameAt(a.Start),
		End:    info.FrameAt(a.End),
		Stride: info.FramesPerSecond(),
	}
}
