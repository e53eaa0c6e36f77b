package parser

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/query"
)

const distinctPrefix = "distinct:"

// Parse reads a query string such as
// $filter=result gt 5&$expand=Datastream($select=name)&$top=10.
// An empty string yields an empty query.
func Parse(reg *model.Registry, text string) (*query.Query, error) {
	return parseOptions(reg, strings.TrimPrefix(text, "?"), '&')
}

func parseOptions(reg *model.Registry, text string, sep byte) (*query.Query, error) {
	q := query.New()
	for _, option := range splitTopLevel(text, sep) {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		name, value, ok := strings.Cut(option, "=")
		if !ok {
			return nil, model.InvalidQuery("option %q has no value", option)
		}
		if strings.ContainsRune(value, '%') {
			unescaped, err := url.PathUnescape(value)
			if err != nil {
				return nil, model.InvalidQuery("bad escape in %s", name)
			}
			value = unescaped
		}
		if err := applyOption(reg, q, name, value); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func applyOption(reg *model.Registry, q *query.Query, name, value string) error {
	switch name {
	case "$filter":
		expr, err := ParseExpression(reg, value)
		if err != nil {
			return err
		}
		q.SetFilter(expr)
	case "$select":
		return parseSelect(reg, q, value)
	case "$expand":
		return parseExpand(reg, q, value)
	case "$orderby":
		return parseOrderBy(reg, q, value)
	case "$top":
		n, err := parseNonNegative(name, value)
		if err != nil {
			return err
		}
		q.SetTop(n)
	case "$skip":
		n, err := parseNonNegative(name, value)
		if err != nil {
			return err
		}
		q.SetSkip(n)
	case "$count":
		switch strings.ToLower(value) {
		case "true":
			q.SetCount(true)
		case "false":
			q.SetCount(false)
		default:
			return model.InvalidQuery("$count must be true or false, got %q", value)
		}
	case "$format":
		q.SetFormat(value)
	case "$resultFormat":
		q.SetResultFormat(value)
	default:
		return model.InvalidQuery("unknown query option %q", name)
	}
	return nil
}

func parseNonNegative(name, value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0, model.InvalidQuery("%s must be a non-negative integer, got %q", name, value)
	}
	return n, nil
}

func parseSelect(reg *model.Registry, q *query.Query, value string) error {
	if strings.HasPrefix(value, distinctPrefix) {
		q.SetSelectDistinct(true)
		value = value[len(distinctPrefix):]
	}
	for _, item := range splitTopLevel(value, ',') {
		segments := strings.Split(strings.TrimSpace(item), "/")
		if len(segments) == 1 {
			if np := reg.NavigationProperty(segments[0]); np != nil {
				q.AddSelect(np)
				continue
			}
		}
		ep := reg.EntityProperty(segments[0])
		if ep == nil {
			return model.InvalidQuery("unknown property %q in $select", segments[0])
		}
		if len(segments) == 1 {
			q.AddSelect(ep)
			continue
		}
		if !ep.Type.IsJSON() {
			return model.InvalidQuery("property %s has no sub-properties", ep.Name)
		}
		q.AddSelect(model.NewCustomProperty(ep, splitIndexes(segments[1:])...))
	}
	return nil
}

func parseExpand(reg *model.Registry, q *query.Query, value string) error {
	for _, item := range splitTopLevel(value, ',') {
		item = strings.TrimSpace(item)
		pathPart, options := item, ""
		if open := strings.IndexByte(item, '('); open >= 0 {
			if !strings.HasSuffix(item, ")") {
				return model.InvalidQuery("unbalanced parentheses in $expand %q", item)
			}
			pathPart, options = item[:open], item[open+1:len(item)-1]
		}

		props, err := resolveExpandPath(reg, strings.Split(pathPart, "/"))
		if err != nil {
			return err
		}
		var sub *query.Query
		if options != "" {
			if sub, err = parseOptions(reg, options, ';'); err != nil {
				return err
			}
		}
		q.MergeExpand(props, sub)
	}
	return nil
}

// resolveExpandPath resolves navigation segments. A JSON property followed
// by a segment named like key.Type is a custom link to that type.
func resolveExpandPath(reg *model.Registry, segments []string) ([]*model.Property, error) {
	var props []*model.Property
	for i, name := range segments {
		if np := reg.NavigationProperty(name); np != nil {
			props = append(props, np)
			continue
		}
		ep := reg.EntityProperty(name)
		if ep == nil || !ep.Type.IsJSON() || i == len(segments)-1 {
			return nil, model.InvalidQuery("%q is not a navigation property", name)
		}
		rest := segments[i+1:]
		last := rest[len(rest)-1]
		dot := strings.LastIndexByte(last, '.')
		if dot < 0 || reg.EntityType(last[dot+1:]) == nil {
			return nil, model.InvalidQuery("%q is not a custom link", strings.Join(rest, "/"))
		}
		return append(props, model.NewCustomLink(ep, reg.EntityType(last[dot+1:]).Name, rest...)), nil
	}
	return props, nil
}

func parseOrderBy(reg *model.Registry, q *query.Query, value string) error {
	for _, item := range splitTopLevel(value, ',') {
		p, err := newParser(reg, item)
		if err != nil {
			return err
		}
		expr, err := p.parseAdditive()
		if err != nil {
			return err
		}
		desc := false
		switch {
		case p.currentKeyword("desc"):
			desc = true
			p.advance()
		case p.currentKeyword("asc"):
			p.advance()
		}
		if !p.currentIs(TOKEN_EOF) {
			return p.unexpected()
		}
		q.AddOrderBy(expr, desc)
	}
	return nil
}

// splitTopLevel splits on sep outside of parentheses and quoted strings.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == sep && depth == 0:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}
