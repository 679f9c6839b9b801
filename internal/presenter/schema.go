// Package presenter describes how booking entities are laid out in terminal
// output. Schemas are declarative YAML embedded in the binary.
package presenter

// EntitySchema describes how one entity type is presented.
type EntitySchema struct {
	Entity string `yaml:"entity"`

	// Detect lists keys whose joint presence identifies the entity in
	// untyped JSON data.
	Detect []string `yaml:"detect"`

	// Label is the field used as the entity's one-line name.
	Label string `yaml:"label"`

	List   []Column `yaml:"list"`
	Detail []Column `yaml:"detail"`

	// Markdown names a free-text field rendered as Markdown under the
	// detail view (notes, descriptions).
	Markdown string `yaml:"markdown"`
}

// Column is a single presented field.
type Column struct {
	Key    string `yaml:"key"`
	Header string `yaml:"header"`

	// Format is one of: text, datetime, date, time, duration, price,
	// status, bool, person, list.
	Format string `yaml:"format"`
	Muted  bool   `yaml:"muted"`
}

// HeaderOrKey returns the column header, deriving one from the key.
func (c Column) HeaderOrKey() string {
	if c.Header != "" {
		return c.Header
	}
	return HumanizeKey(c.Key)
}
