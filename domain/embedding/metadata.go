package embedding

// Metadata keys.
const (
	KeyVideo      = "video"
	KeyStartFrame = "start_frame"
	KeyEndFrame   = "end_frame"
	KeySentence   = "sentence"
	KeyDataset    = "dataset"
	KeyClassName  = "class_name"
)

// Metadata travels with an embedding into the store. Encoders never read it.
type Metadata struct {
	Video      string
	StartFrame int
	EndFrame   int
	Sentence   string
	Dataset    string
	ClassName  string
}

// Keys returns every key Map can produce, required keys first.
func Keys() []string {
	return []string{KeyVideo, KeyStartFrame, KeyEndFrame, KeySentence, KeyDataset, KeyClassName}
}

// Map flattens the metadata. Optional annotation keys are present only when set.
func (m Metadata) Map() map[string]any {
	out := map[string]any{
		KeyVideo:      m.Video,
		KeyStartFrame: m.StartFrame,
		KeyEndFrame:   m.EndFrame,
	}
	if m.Sentence != "" {
		out[KeySentence] = m.Sentence
	}
	if m.Dataset != "" {
		out[KeyDataset] = m.Dataset
	}
	if m.ClassName != "" {
		out[KeyClassName] = m.ClassName
	}
	return out
}

// Merge returns Map with extra added. Keys in extra never replace the
// required keys.
func (m Metadata) Merge(extra map[string]any) map[string]any {
	out := m.Map()
	for k, v := range extra {
		switch k {
		case KeyVideo, KeyStartFrame, KeyEndFrame:
			continue
		}
		out[k] = v
	}
	return out
}
