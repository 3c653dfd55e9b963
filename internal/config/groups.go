package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// groupSpec is one entry of the groups mapping: either a bare size or a
// table with size and avoid_split.
type groupSpec struct {
	Size       int  `yaml:"size"`
	AvoidSplit bool `yaml:"avoid_split"`
}

// UnmarshalYAML accepts "A: 127" as well as "A: {size: 127, avoid_split: true}".
func (g *groupSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&g.Size)
	}
	type plain groupSpec
	return value.Decode((*plain)(g))
}

// UnmarshalTOML accepts A = 127 as well as A = { size = 127, avoid_split = true }.
func (g *groupSpec) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case int64:
		g.Size = int(v)
	case map[string]any:
		for key, raw := range v {
			switch key {
			case "size":
				size, ok := raw.(int64)
				if !ok {
					return fmt.Errorf("size must be an integer, got %T", raw)
				}
				g.Size = int(size)
			case "avoid_split":
				flag, ok := raw.(bool)
				if !ok {
					return fmt.Errorf("avoid_split must be a boolean, got %T", raw)
				}
				g.AvoidSplit = flag
			default:
				return fmt.Errorf("unknown group field %q", key)
			}
		}
	default:
		return fmt.Errorf("group must be a size or a table, got %T", data)
	}
	return nil
}

// groupList is the groups mapping in document order.
type groupList []parade.Group

// UnmarshalYAML decodes the mapping node pair by pair so the order of the
// file is kept.
func (l *groupList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: groups must be a mapping", value.Line)
	}
	out := make(groupList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, node := value.Content[i], value.Content[i+1]
		var spec groupSpec
		if err := node.Decode(&spec); err != nil {
			return fmt.Errorf("line %d: group %q: %w", node.Line, key.Value, err)
		}
		out = append(out, parade.Group{Name: key.Value, Size: spec.Size, AvoidSplit: spec.AvoidSplit})
	}
	*l = out
	return nil
}

// orderedTOMLGroups restores document order, which TOML tables lose when
// decoded into a map.
func orderedTOMLGroups(md toml.MetaData, specs map[string]groupSpec) groupList {
	out := make(groupList, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "groups" || seen[key[1]] {
			continue
		}
		spec, ok := specs[key[1]]
		if !ok {
			continue
		}
		seen[key[1]] = true
		out = append(out, parade.Group{Name: key[1], Size: spec.Size, AvoidSplit: spec.AvoidSplit})
	}
	return out
}
