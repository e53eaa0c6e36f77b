package model

import "strings"

// PropertyKind tags the property variants. It is decided at registration and
// never changes afterwards.
type PropertyKind int

const (
	// KindEntity is a scalar property stored in one or more columns
	KindEntity PropertyKind = iota
	// KindNavigation points at a single related entity
	KindNavigation
	// KindNavigationSet points at a collection of related entities
	KindNavigationSet
)

// String returns the string representation of the property kind
func (k PropertyKind) String() string {
	switch k {
	case KindNavigation:
		return "Navigation"
	case KindNavigationSet:
		return "NavigationSet"
	default:
		return "Entity"
	}
}

// Property describes one property of an entity type.
//
// Registered properties are shared singletons compared by pointer. Custom
// properties are built per query for JSON sub-paths below a registered
// JSON property (Main) and compare by value.
type Property struct {
	Name     string
	JSONName string
	Aliases  []string
	Kind     PropertyKind
	Type     ValueType

	// Target is the entity type name a navigation property points to
	Target string

	// Main and SubPath are set on custom properties only
	Main    *Property
	SubPath []string
}

// IDProperty is the identifier property shared by all entity types.
var IDProperty = &Property{
	Name:     "id",
	JSONName: "@iot.id",
	Aliases:  []string{"@iot.id"},
	Kind:     KindEntity,
	Type:     TypeID,
}

// NewEntityProperty creates a scalar property
func NewEntityProperty(name string, t ValueType, aliases ...string) *Property {
	return &Property{Name: name, JSONName: name, Aliases: aliases, Kind: KindEntity, Type: t}
}

// NewNavigationProperty creates a navigation property to the named entity type
func NewNavigationProperty(name, target string, set bool) *Property {
	kind := KindNavigation
	if set {
		kind = KindNavigationSet
	}
	return &Property{Name: name, JSONName: name, Kind: kind, Target: target}
}

// NewCustomProperty creates a property addressing a sub-path of a JSON property
func NewCustomProperty(main *Property, subPath ...string) *Property {
	return &Property{
		Name:     main.Name + "/" + strings.Join(subPath, "/"),
		JSONName: main.JSONName,
		Kind:     KindEntity,
		Type:     TypeAny,
		Main:     main,
		SubPath:  subPath,
	}
}

// NewCustomLink creates a custom navigation link stored inside a JSON
// property, e.g. properties/owner.Thing.
func NewCustomLink(main *Property, target string, subPath ...string) *Property {
	p := NewCustomProperty(main, subPath...)
	p.Kind = KindNavigation
	p.Target = target
	return p
}

// IsNavigation reports whether the property points at other entities
func (p *Property) IsNavigation() bool {
	return p.Kind == KindNavigation || p.Kind == KindNavigationSet
}

// IsEntitySet reports whether the property points at a collection
func (p *Property) IsEntitySet() bool {
	return p.Kind == KindNavigationSet
}

// IsCustom reports whether the property is a JSON sub-path property
func (p *Property) IsCustom() bool {
	return p.Main != nil
}

// Matches reports whether name addresses this property
func (p *Property) Matches(name string) bool {
	if name == p.Name || name == p.JSONName {
		return true
	}
	for _, alias := range p.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}

func (p *Property) String() string {
	return p.Name
}
