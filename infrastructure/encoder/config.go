package encoder

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/helixml/vidembed/domain/embedding"
)

// Devices accepted by ModelConfig.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
)

// ModelConfig is the flat configuration for one frame model.
type ModelConfig struct {
	Architecture string `yaml:"architecture" json:"architecture" validate:"required"`
	Weights      string `yaml:"weights,omitempty" json:"weights,omitempty"`
	Checkpoint   string `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
	Device       string `yaml:"device,omitempty" json:"device,omitempty" validate:"omitempty,oneof=cpu cuda mps"`
	Dimension    int    `yaml:"dimension" json:"dimension" validate:"required,gt=0"`
}

// DefaultCLIPConfig is the image model behind the clip encoders.
func DefaultCLIPConfig() ModelConfig {
	return ModelConfig{
		Architecture: "openai/clip-vit-large-patch14",
		Device:       DeviceCPU,
		Dimension:    768,
	}
}

// DefaultVCLIPConfig is the video-pretrained model behind the vclip encoders.
// Its checkpoint has no default and must be supplied.
func DefaultVCLIPConfig() ModelConfig {
	return ModelConfig{
		Architecture: "ViT-B/32",
		Device:       DeviceCPU,
		Dimension:    512,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields.
func (c ModelConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return embedding.Configurationf("model config: %v", err)
	}
	return nil
}

// Merge returns c with every non-zero field of override applied.
func (c ModelConfig) Merge(override ModelConfig) ModelConfig {
	if override.Architecture != "" {
		c.Architecture = override.Architecture
	}
	if override.Weights != "" {
		c.Weights = override.Weights
	}
	if override.Checkpoint != "" {
		c.Checkpoint = override.Checkpoint
	}
	if override.Device != "" {
		c.Device = override.Device
	}
	if override.Dimension != 0 {
		c.Dimension = override.Dimension
	}
	return c
}

// LoadModelConfig reads a ModelConfig from a YAML file. The result is not validated.
func LoadModelConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("read model config: %w", err)
	}
	var cfg ModelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ModelConfig{}, embedding.Configurationf("parse model config %s: %v", path, err)
	}
	return cfg, nil
}
