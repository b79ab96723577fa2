package embedding

import (
	"fmt"
	"strings"
)

// Metric is the similarity metric a collection is provisioned with.
type Metric string

// Metric values.
const (
	MetricCosine Metric = "COSINE"
	MetricDot    Metric = "DOT"
)

// EncoderParams describes the shape of what an encoder emits. Stores are
// provisioned from these exact values.
type EncoderParams struct {
	ModelName string
	Shape     []int
	List      bool
	Metric    Metric
}

// NewEncoderParams creates params for an encoder emitting vectors of width dim.
func NewEncoderParams(modelName string, dim int, list bool) EncoderParams {
	return EncoderParams{
		ModelName: modelName,
		Shape:     []int{dim},
		List:      list,
		Metric:    MetricCosine,
	}
}

// Dim returns the vector width, the last dimension of the shape.
func (p EncoderParams) Dim() int {
	if len(p.Shape) == 0 {
		return 0
	}
	return p.Shape[len(p.Shape)-1]
}

// Validate checks the params are usable for provisioning a store.
func (p EncoderParams) Validate() error {
	if strings.TrimSpace(p.ModelName) == "" {
		return Configurationf("encoder params: empty model name")
	}
	if p.Dim() <= 0 {
		return Configurationf("encoder params: invalid embedding size %v", p.Shape)
	}
	switch p.Metric {
	case MetricCosine, MetricDot:
	default:
		return Configurationf("encoder params: unknown metric %q", p.Metric)
	}
	return nil
}

// Check verifies an embedding matches the declared params.
func (p EncoderParams) Check(e Embedding) error {
	if e.IsList() != p.List {
		return fmt.Errorf("%w: %s declares list=%t but produced list=%t", ErrDimensionMismatch, p.ModelName, p.List, e.IsList())
	}
	for i, v := range e.Vectors() {
		if len(v) != p.Dim() {
			return fmt.Errorf("%w: %s vector %d has width %d, declared %d", ErrDimensionMismatch, p.ModelName, i, len(v), p.Dim())
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (p EncoderParams) String() string {
	return fmt.Sprintf("%s(size=%v list=%t metric=%s)", p.ModelName, p.Shape, p.List, p.Metric)
}
