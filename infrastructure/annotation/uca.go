// Package annotation loads the UCA (UCF-Crime Annotation) sentence dataset.
package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/helixml/vidembed/domain/video"
)

// Splits and the files they are read from, in load order.
var splitFiles = []struct {
	split string
	file  string
}{
	{split: "train", file: "UCFCrime_Train.json"},
	{split: "val", file: "UCFCrime_Val.json"},
	{split: "test", file: "UCFCrime_Test.json"},
}

// NormalClass is the class of videos without an anomaly.
const NormalClass = "Normal_Videos"

// classSuffixLen is the length of the per-video suffix, e.g. "001_x264".
const classSuffixLen = 8

type videoEntry struct {
	Duration   float64      `json:"duration"`
	Timestamps [][2]float64 `json:"timestamps"`
	Sentences  []string     `json:"sentences"`
}

// Set is a loaded annotation dataset, grouped by video name without extension.
type Set struct {
	byVideo map[string][]video.Annotation
	total   int
}

// Load reads the train, val and test files from dir.
func Load(dir string) (*Set, error) {
	s := &Set{byVideo: map[string][]video.Annotation{}}
	for _, sf := range splitFiles {
		if err := s.loadFile(filepath.Join(dir, sf.file), sf.split); err != nil {
			return nil, err
		}
	}
	for name := range s.byVideo {
		anns := s.byVideo[name]
		sort.SliceStable(anns, func(i, j int) bool { return anns[i].Start < anns[j].Start })
	}
	return s, nil
}

func (s *Set) loadFile(path, split string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read annotations: %w", err)
	}
	var entries map[string]videoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	for name, e := range entries {
		if len(e.Timestamps) != len(e.Sentences) {
			return fmt.Errorf("%s: video %s has %d timestamps but %d sentences",
				filepath.Base(path), name, len(e.Timestamps), len(e.Sentences))
		}
		class := ClassName(name)
		for i, sentence := range e.Sentences {
			ts := e.Timestamps[i]
			s.byVideo[name] = append(s.byVideo[name], video.Annotation{
				Video:     name,
				Sentence:  sentence,
				Split:     split,
				ClassName: class,
				Anomaly:   class != NormalClass,
				Start:     ts[0],
				End:       ts[1],
				Duration:  e.Duration,
			})
			s.total++
		}
	}
	return nil
}

// ClassName derives the class from a video name by dropping its suffix.
func ClassName(videoName string) string {
	if len(videoName) <= classSuffixLen {
		return ""
	}
	class := videoName[:len(videoName)-classSuffixLen]
	if class == NormalClass+"_" {
		return NormalClass
	}
	return class
}

// For returns the annotations of a video, sorted by start time. The name may
// include an extension.
func (s *Set) For(videoName string) []video.Annotation {
	return s.byVideo[Stem(videoName)]
}

// Videos returns the annotated video names in lexical order.
func (s *Set) Videos() []string {
	names := make([]string, 0, len(s.byVideo))
	for name := range s.byVideo {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of annotations.
func (s *Set) Len() int { return s.total }

// Stem strips everything from the first dot of a file name.
func Stem(name string) string {
	name = filepath.Base(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
