package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"incidentbot/internal/domain"
)

type zonesFile struct {
	Zones []domain.AmbiguousZone `yaml:"zones"`
}

// LoadZones reads the ambiguous-zone definitions. The file is optional: a
// missing file just disables zone disambiguation, a malformed one is a
// configuration error.
func LoadZones(path string) ([]domain.AmbiguousZone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read zones: %w", err)
	}
	var f zonesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse zones yaml: %w", err)
	}
	for _, z := range f.Zones {
		if z.Key == "" || len(z.Triggers) == 0 || len(z.Options) == 0 {
			return nil, fmt.Errorf("zone %q is missing key, triggers or options", z.Key)
		}
	}
	return f.Zones, nil
}
