package draft

import (
	"sort"

	"draftline/internal/layout"
)

// FieldSource is where a draft's field map comes from. It is resolved once
// per load; nothing after hydration branches on it.
type FieldSource interface {
	Hydrate() Fields
	fieldSource()
}

// ExplicitFields is the current format: the server sends a fields object.
type ExplicitFields struct {
	Fields Fields
}

// DerivedFromBlocks is the legacy format: values are embedded in blocks.
type DerivedFromBlocks struct {
	Blocks []LegacyBlock
}

func (ExplicitFields) fieldSource()    {}
func (DerivedFromBlocks) fieldSource() {}

func (s ExplicitFields) Hydrate() Fields {
	if s.Fields == nil {
		return Fields{}
	}
	return s.Fields.Clone()
}

// Hydrate collects embedded values. Editable blocks without a value start as
// null so they still show up as known fields.
func (s DerivedFromBlocks) Hydrate() Fields {
	fields := Fields{}
	for _, block := range s.Blocks {
		if block.Key == "" {
			continue
		}
		if block.Value != nil {
			fields[block.Key] = *block.Value
			continue
		}
		if block.Editable {
			if _, ok := fields[block.Key]; !ok {
				fields[block.Key] = Null()
			}
		}
	}
	return fields
}

// ResolveFieldSource picks the explicit fields object when the payload has
// one, even if empty, and falls back to legacy blocks otherwise.
func ResolveFieldSource(p Payload) FieldSource {
	if p.Fields != nil {
		return ExplicitFields{Fields: p.Fields}
	}
	if len(p.Blocks) > 0 {
		return DerivedFromBlocks{Blocks: p.Blocks}
	}
	return ExplicitFields{}
}

// KnownKeys is the set of keys a field map may legitimately hold: editable
// layout blocks plus schema fields.
func KnownKeys(pages []layout.Page, schema *Schema) map[string]struct{} {
	known := make(map[string]struct{})
	for _, page := range pages {
		for _, block := range page.Blocks {
			if block.Editable && block.Key != "" {
				known[block.Key] = struct{}{}
			}
		}
	}
	if schema != nil {
		for _, field := range schema.Fields {
			known[field.Key] = struct{}{}
		}
	}
	return known
}

// OrphanKeys lists, sorted, the field keys with no matching block or schema
// field.
func OrphanKeys(fields Fields, known map[string]struct{}) []string {
	orphans := make([]string, 0)
	for key := range fields {
		if _, ok := known[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	return orphans
}
