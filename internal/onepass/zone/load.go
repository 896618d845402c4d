package zone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// fileLayout is the on-disk form of a site layout:
//
//	final: PALAIS_DES_FESTIVALS
//	zones:
//	  - name: LA_BOCCA
//	    targets: [PALAIS_DES_FESTIVALS]
//	  - name: PALAIS_DES_FESTIVALS
type fileLayout struct {
	Final string `yaml:"final"`
	Zones []struct {
		Name    string   `yaml:"name"`
		Targets []string `yaml:"targets"`
	} `yaml:"zones"`
}

// Load reads a site layout from a YAML file.
func Load(path string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	return Parse(b)
}

// Parse builds a Graph from YAML bytes.
func Parse(b []byte) (*Graph, error) {
	var fl fileLayout
	if err := yaml.Unmarshal(b, &fl); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}

	edges := make([]Edge, 0, len(fl.Zones))
	for _, z := range fl.Zones {
		e := Edge{From: types.NormalizeZone(z.Name)}
		for _, t := range z.Targets {
			e.To = append(e.To, types.NormalizeZone(t))
		}
		edges = append(edges, e)
	}

	return New(types.NormalizeZone(fl.Final), edges)
}
