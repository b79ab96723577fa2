package video

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	domainvideo "github.com/helixml/vidembed/domain/video"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// parseProbe turns ffprobe JSON into stream info. A file without a usable
// video stream is unreadable.
func parseProbe(name string, data []byte) (domainvideo.Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return domainvideo.Info{}, fmt.Errorf("%w: parse probe: %v", domainvideo.ErrUnreadable, err)
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "" || out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		return domainvideo.Info{}, fmt.Errorf("%w: %s has no video stream", domainvideo.ErrUnreadable, name)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return domainvideo.Info{}, fmt.Errorf("%w: %s has invalid dimensions %dx%d", domainvideo.ErrUnreadable, name, stream.Width, stream.Height)
	}

	fps := parseRate(stream.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(stream.RFrameRate)
	}
	if fps <= 0 {
		return domainvideo.Info{}, fmt.Errorf("%w: %s has no frame rate", domainvideo.ErrUnreadable, name)
	}

	count, err := strconv.Atoi(stream.NbFrames)
	if err != nil || count <= 0 {
		duration := parseFloat(stream.Duration)
		if duration <= 0 {
			duration = parseFloat(out.Format.Duration)
		}
		count = int(math.Round(duration * fps))
	}

	return domainvideo.Info{
		Name:       name,
		Width:      stream.Width,
		Height:     stream.Height,
		FPS:        fps,
		FrameCount: count,
	}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001" or "25".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n := parseFloat(num)
	if !ok {
		return n
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
