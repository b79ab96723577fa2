package mcp

import (
	"fmt"
	"net/url"
)

// ClipURI identifies a frame range of a video, e.g. clip://Abuse001_x264/0-30.
type ClipURI struct {
	video      string
	startFrame int
	endFrame   int
}

// NewClipURI creates a ClipURI.
func NewClipURI(video string, startFrame, endFrame int) ClipURI {
	return ClipURI{video: video, startFrame: startFrame, endFrame: endFrame}
}

// String builds the clip:// URI string.
func (u ClipURI) String() string {
	return fmt.Sprintf("clip://%s/%d-%d", url.PathEscape(u.video), u.startFrame, u.endFrame)
}
