package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar_CountsClips(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, 3, "embedding")

	bar.Add(1)
	bar.Add(2)
	bar.Finish()

	assert.Equal(t, 3, bar.Done())
	assert.Contains(t, buf.String(), "embedding")
}

func TestBar_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, 0, "windows")
	bar.Add(4)
	assert.Equal(t, 4, bar.Done())
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	r.Add(1)
	r.Finish()
}
