// Package path models resource paths such as /Things(1)/Datastreams.
package path

import (
	"strings"

	"github.com/conduit-lang/sensorthings/internal/model"
)

// Element is one entity or entity-collection segment of a resource path.
type Element struct {
	Type *model.EntityType
	// Set is true when the segment addresses a collection
	Set bool
	// ID is zero unless the segment selects a single entity
	ID model.ID
	// Property is the navigation property used to reach this segment from
	// the previous one, nil for the first segment
	Property *model.Property
}

// ResourcePath is an ordered list of entity segments, optionally followed by
// a scalar property, $value or $ref.
type ResourcePath struct {
	Elements []Element
	// Property is set when the path ends in a scalar property
	Property *model.Property
	// Value is set for a trailing $value
	Value bool
	// Ref is set for a trailing $ref
	Ref bool
}

// New creates a path of a single collection segment
func New(t *model.EntityType) *ResourcePath {
	return &ResourcePath{Elements: []Element{{Type: t, Set: true}}}
}

// ForEntity creates a path addressing one entity
func ForEntity(t *model.EntityType, id model.ID) *ResourcePath {
	return &ResourcePath{Elements: []Element{{Type: t, ID: id}}}
}

// Main returns the last entity segment
func (p *ResourcePath) Main() Element {
	return p.Elements[len(p.Elements)-1]
}

// MainType returns the type of the last entity segment
func (p *ResourcePath) MainType() *model.EntityType {
	return p.Main().Type
}

// IsEntityTerminal reports whether the path ends in an entity or collection
func (p *ResourcePath) IsEntityTerminal() bool {
	return p.Property == nil
}

// IsCollection reports whether the path ends in an entity collection
func (p *ResourcePath) IsCollection() bool {
	return p.IsEntityTerminal() && p.Main().Set
}

// Parent returns the entity owning the terminal collection, used to inject
// the implicit parent link when creating entities below it.
func (p *ResourcePath) Parent() *model.ParentRef {
	if len(p.Elements) < 2 {
		return nil
	}
	parent := p.Elements[len(p.Elements)-2]
	if parent.ID.IsZero() {
		return nil
	}
	return &model.ParentRef{Type: parent.Type, ID: parent.ID}
}

// Child returns a copy of p extended by a navigation segment
func (p *ResourcePath) Child(reg *model.Registry, np *model.Property, id model.ID) *ResourcePath {
	elements := make([]Element, len(p.Elements), len(p.Elements)+1)
	copy(elements, p.Elements)
	elements = append(elements, Element{
		Type:     reg.EntityType(np.Target),
		Set:      np.IsEntitySet() && id.IsZero(),
		ID:       id,
		Property: np,
	})
	return &ResourcePath{Elements: elements}
}

// String renders the path in URL form
func (p *ResourcePath) String(ids model.IDCodec) string {
	var sb strings.Builder
	for i, e := range p.Elements {
		sb.WriteByte('/')
		switch {
		case i == 0:
			sb.WriteString(e.Type.Plural)
		case e.Property != nil:
			sb.WriteString(e.Property.Name)
		default:
			sb.WriteString(e.Type.Name)
		}
		if !e.ID.IsZero() {
			sb.WriteString("(" + ids.Literal(e.ID) + ")")
		}
	}
	if p.Property != nil {
		sb.WriteString("/" + p.Property.Name)
	}
	if p.Value {
		sb.WriteString("/$value")
	}
	if p.Ref {
		sb.WriteString("/$ref")
	}
	return sb.String()
}

// Parse reads a resource path like /Things(1)/Datastreams or
// /Observations(5)/result/$value.
func Parse(reg *model.Registry, raw string) (*ResourcePath, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return nil, model.InvalidPath("empty path")
	}
	p := &ResourcePath{}
	for _, segment := range splitSegments(raw) {
		if err := p.addSegment(reg, segment); err != nil {
			return nil, err
		}
	}
	if len(p.Elements) == 0 {
		return nil, model.InvalidPath("path %q has no entity segment", raw)
	}
	return p, nil
}

func (p *ResourcePath) addSegment(reg *model.Registry, segment string) error {
	switch {
	case p.Value || p.Ref:
		return model.InvalidPath("nothing can follow $value or $ref")
	case segment == "$value":
		if p.Property == nil {
			return model.InvalidPath("$value must follow a property")
		}
		p.Value = true
		return nil
	case segment == "$ref":
		p.Ref = true
		return nil
	case p.Property != nil:
		return model.InvalidPath("segment %q cannot follow property %s", segment, p.Property.Name)
	}

	name, idLiteral, hasID := splitID(segment)
	var id model.ID
	if hasID {
		parsed, err := reg.IDs().Parse(idLiteral)
		if err != nil {
			return err
		}
		id = parsed
	}

	if len(p.Elements) == 0 {
		t := reg.EntityType(name)
		if t == nil || t.Plural != name {
			return model.InvalidPath("unknown entity set %q", name)
		}
		p.Elements = append(p.Elements, Element{Type: t, Set: !hasID, ID: id})
		return nil
	}

	last := p.Main()
	if last.Set {
		return model.InvalidPath("segment %q follows a collection without an id", segment)
	}
	if prop := last.Type.Property(name); prop != nil {
		if prop.IsNavigation() {
			if !prop.IsEntitySet() && hasID {
				return model.InvalidPath("single entity segment %q cannot take an id", name)
			}
			p.Elements = append(p.Elements, Element{
				Type:     reg.EntityType(prop.Target),
				Set:      prop.IsEntitySet() && !hasID,
				ID:       id,
				Property: prop,
			})
			return nil
		}
		if hasID {
			return model.InvalidPath("property %q cannot take an id", name)
		}
		p.Property = prop
		return nil
	}
	return model.InvalidPath("%s has no property %q", last.Type.Name, name)
}

func splitID(segment string) (string, string, bool) {
	open := strings.IndexByte(segment, '(')
	if open < 0 || !strings.HasSuffix(segment, ")") {
		return segment, "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

// splitSegments splits on '/' outside of quoted id literals.
func splitSegments(raw string) []string {
	var segments []string
	inQuote := false
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\'':
			inQuote = !inQuote
		case '/':
			if !inQuote {
				segments = append(segments, raw[start:i])
				start = i + 1
			}
		}
	}
	return append(segments, raw[start:])
}
