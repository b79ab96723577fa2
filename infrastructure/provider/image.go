package provider

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/helixml/vidembed/domain/video"
)

const jpegQuality = 90

// encodeJPEG compresses a frame for transport.
func encodeJPEG(f video.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Index(), err)
	}
	return buf.Bytes(), nil
}

// frameBase64 returns the frame as base64-encoded JPEG.
func frameBase64(f video.Frame) (string, error) {
	data, err := encodeJPEG(f)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// frameDataURI returns the frame as a JPEG data URI.
func frameDataURI(f video.Frame) (string, error) {
	b64, err := frameBase64(f)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + b64, nil
}
