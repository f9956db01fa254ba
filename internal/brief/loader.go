package brief

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates a campaign brief from a YAML file. The rest
// of the system only ever sees the parsed, validated struct.
func LoadFile(path string) (*CampaignBrief, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open brief %s: %w", path, err)
	}
	defer f.Close()

	var b CampaignBrief
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode brief %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid brief %s: %w", path, err)
	}
	return &b, nil
}
