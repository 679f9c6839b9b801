package presenter

import (
	"cmp"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemasFS embed.FS

// schemaSet is the parsed schemas/ directory: by entity name, and in
// detection order (more detect keys first).
type schemaSet struct {
	byName    map[string]*EntitySchema
	detection []*EntitySchema
}

// loadSchemas parses every embedded schema once. A bad file is reported
// through LoadError and skipped; the rest stay usable.
var loadSchemas = sync.OnceValues(func() (*schemaSet, error) {
	set := &schemaSet{byName: map[string]*EntitySchema{}}
	paths, err := fs.Glob(schemasFS, "schemas/*.yaml")
	if err != nil {
		return set, fmt.Errorf("reading schemas dir: %w", err)
	}
	var firstErr error
	for _, p := range paths {
		schema, err := parseSchema(p)
		if err != nil {
			firstErr = cmp.Or(firstErr, err)
			continue
		}
		set.byName[schema.Entity] = schema
		set.detection = append(set.detection, schema)
	}
	slices.SortStableFunc(set.detection, func(a, b *EntitySchema) int {
		return len(b.Detect) - len(a.Detect)
	})
	return set, firstErr
})

func parseSchema(path string) (*EntitySchema, error) {
	raw, err := schemasFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema := new(EntitySchema)
	if err := yaml.Unmarshal(raw, schema); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return schema, nil
}

// LoadError returns the first error seen while loading schemas.
func LoadError() error {
	_, err := loadSchemas()
	return err
}

// LookupByName returns the schema for an entity such as "appointment".
func LookupByName(name string) *EntitySchema {
	set, _ := loadSchemas()
	return set.byName[name]
}

// Detect picks a schema for data. An entity hint wins; otherwise the first
// schema whose detect keys are all present in data.
func Detect(data map[string]any, hint string) *EntitySchema {
	if s := LookupByName(hint); hint != "" && s != nil {
		return s
	}
	if data == nil {
		return nil
	}
	set, _ := loadSchemas()
	for _, s := range set.detection {
		if len(s.Detect) > 0 && hasKeys(data, s.Detect) {
			return s
		}
	}
	return nil
}

func hasKeys(data map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return false
		}
	}
	return true
}
