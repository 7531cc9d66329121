// Package settings loads the daemon's own configuration file. This is the
// operator-facing YAML describing where the daemon listens and journals, not
// the space definitions it serves.
package settings

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openspaces/spaced/pkg/telemetry"
)

// Settings is the daemon configuration.
type Settings struct {
	// Listen is the TCP address the connection binding serves on.
	Listen string `yaml:"listen" validate:"required,hostname_port"`
	// SpaceFile is the space definition file parsed for each session.
	SpaceFile string `yaml:"space_file" validate:"required"`
	// JournalPath is the sqlite run journal. Empty disables journaling.
	JournalPath string `yaml:"journal_path"`

	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns settings with every optional field populated.
func Default() *Settings {
	return &Settings{
		Listen:    "127.0.0.1:7077",
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads and validates a settings file. Fields absent from the file keep
// their defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return s.Telemetry.Validate()
}
