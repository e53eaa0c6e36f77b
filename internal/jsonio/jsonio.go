// Package jsonio converts entities to and from their JSON documents.
package jsonio

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/sensorthings/internal/model"
)

// Annotation suffixes written next to navigation properties
const (
	CountAnnotation = "@iot.count"
	IDAnnotation    = "@iot.id"
)

// Write converts an entity to its document. Only set properties are
// written. A navigation property holding an unexpanded entity is written as
// {"@iot.id": id}.
func Write(ids model.IDCodec, e *model.Entity) map[string]interface{} {
	doc := make(map[string]interface{})
	if !e.ID().IsZero() {
		doc[model.IDProperty.JSONName] = ids.ToJSON(e.ID())
	}
	for _, p := range e.SetProperties() {
		switch {
		case p == model.IDProperty:
		case p.Kind == model.KindEntity:
			doc[p.JSONName] = p.Type.JSONValue(e.Get(p))
		case p.Kind == model.KindNavigation:
			if related := e.Related(p); related != nil {
				doc[p.JSONName] = Write(ids, related)
			}
		case p.Kind == model.KindNavigationSet:
			if set := e.RelatedSet(p); set != nil {
				doc[p.JSONName] = writeEntities(ids, set)
				if set.Count >= 0 {
					doc[p.JSONName+CountAnnotation] = set.Count
				}
			}
		}
	}
	for _, p := range e.CustomProperties() {
		writeCustom(ids, doc, p, e.Get(p))
	}
	return doc
}

// WriteSet converts a collection to {"@iot.count": n, "value": [...]}
func WriteSet(ids model.IDCodec, set *model.EntitySet) map[string]interface{} {
	doc := map[string]interface{}{"value": writeEntities(ids, set)}
	if set.Count >= 0 {
		doc[CountAnnotation] = set.Count
	}
	return doc
}

func writeEntities(ids model.IDCodec, set *model.EntitySet) []interface{} {
	out := make([]interface{}, 0, set.Len())
	for _, e := range set.Entities {
		out = append(out, Write(ids, e))
	}
	return out
}

// writeCustom places a JSON sub-path value below its main property. An
// expanded custom link is written next to the id it was resolved from.
func writeCustom(ids model.IDCodec, doc map[string]interface{}, p *model.Property, v interface{}) {
	parent := doc
	key := p.Main.JSONName
	for _, segment := range p.SubPath {
		child, ok := parent[key].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
		} else {
			child = copyMap(child)
		}
		parent[key] = child
		parent, key = child, segment
	}
	if related, ok := v.(*model.Entity); ok {
		parent[key] = Write(ids, related)
		return
	}
	parent[key] = v
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Read parses an entity document of the given type
func Read(reg *model.Registry, et *model.EntityType, data []byte) (*model.Entity, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, model.InvalidEntity("malformed json: %v", err)
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, model.InvalidEntity("a %s must be a json object", et.Name)
	}
	return ReadMap(reg, et, obj)
}

// ReadMap parses a decoded entity document. Unknown keys are rejected;
// annotations such as Thing@iot.navigationLink are skipped.
func ReadMap(reg *model.Registry, et *model.EntityType, doc map[string]interface{}) (*model.Entity, error) {
	e := model.NewEntity(et)
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if IsAnnotation(key) {
			continue
		}
		p := et.Property(key)
		if p == nil {
			return nil, model.InvalidEntity("%s has no property %q", et.Name, key)
		}
		if err := readProperty(reg, e, p, doc[key]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func readProperty(reg *model.Registry, e *model.Entity, p *model.Property, v interface{}) error {
	switch {
	case p == model.IDProperty:
		if v == nil {
			return nil
		}
		id, err := reg.IDs().FromJSON(v)
		if err != nil {
			return model.InvalidEntity("invalid id %v", v)
		}
		e.SetID(id)
	case p.Kind == model.KindEntity:
		value, err := p.Type.Normalize(v)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		e.Set(p, value)
	case p.Kind == model.KindNavigation:
		if v == nil {
			e.Set(p, nil)
			return nil
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			return model.InvalidEntity("%s must be an object", p.Name)
		}
		related, err := ReadMap(reg, reg.EntityType(p.Target), obj)
		if err != nil {
			return err
		}
		e.Set(p, related)
	case p.Kind == model.KindNavigationSet:
		items, ok := v.([]interface{})
		if !ok {
			return model.InvalidEntity("%s must be an array", p.Name)
		}
		target := reg.EntityType(p.Target)
		set := model.NewEntitySet(target)
		for _, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return model.InvalidEntity("items of %s must be objects", p.Name)
			}
			related, err := ReadMap(reg, target, obj)
			if err != nil {
				return err
			}
			set.Add(related)
		}
		e.Set(p, set)
	}
	return nil
}

// IsAnnotation reports whether a document key is an annotation of another
// key, e.g. Datastreams@iot.count. @iot.id itself is not one.
func IsAnnotation(key string) bool {
	return strings.LastIndexByte(key, '@') > 0
}
