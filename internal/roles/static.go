package roles

import (
	"context"
	"strings"
)

// StaticSource serves roles from a fixed table.
//
// Every name holds the default roles; names listed in the table hold their
// listed roles as well. Names are matched case-insensitively.
type StaticSource struct {
	byName   map[string][]string
	defaults []string
}

// NewStaticSource creates a static source.
func NewStaticSource(byName map[string][]string, defaults []string) *StaticSource {
	table := make(map[string][]string, len(byName))
	for name, roles := range byName {
		key := strings.ToLower(name)
		table[key] = append(table[key], roles...)
	}
	return &StaticSource{
		byName:   table,
		defaults: clean(defaults),
	}
}

func (s *StaticSource) Roles(_ context.Context, name string) ([]string, error) {
	roles := append([]string(nil), s.defaults...)
	roles = append(roles, s.byName[strings.ToLower(name)]...)
	return clean(roles), nil
}
