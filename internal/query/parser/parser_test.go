package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/query"
)

var (
	epName       = model.NewEntityProperty("name", model.TypeString)
	epValue      = model.NewEntityProperty("value", model.TypeNumber)
	epTime       = model.NewEntityProperty("time", model.TypeTimeInstant)
	epProperties = model.NewEntityProperty("properties", model.TypeObject)
	npHouse      = model.NewNavigationProperty("House", "House", false)
	npRooms      = model.NewNavigationProperty("Rooms", "Room", true)
	npDoors      = model.NewNavigationProperty("Doors", "Door", true)
)

func testRegistry() *model.Registry {
	house := model.NewEntityType("House", "Houses").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(epName, true).
		RegisterProperty(epProperties, false).
		RegisterProperty(npRooms, false)
	room := model.NewEntityType("Room", "Rooms").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(epName, true).
		RegisterProperty(epValue, false).
		RegisterProperty(epTime, false).
		RegisterProperty(epProperties, false).
		RegisterProperty(npHouse, true).
		RegisterProperty(npDoors, false)
	door := model.NewEntityType("Door", "Doors").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(epName, true)
	return model.NewBuilder(model.LongIDs{}, zap.NewNop()).
		RegisterEntityType(house).
		RegisterEntityType(room).
		RegisterEntityType(door).
		Build()
}

func TestParse_RoundTrip(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		name     string
		input    string
		expected *query.Query
	}{
		{
			name:  "arithmetic in comparison",
			input: "$filter=(value sub 5) gt 10",
			expected: query.New().SetFilter(
				query.Gt(query.Sub(query.NewPath(epValue), query.Int(5)), query.Int(10))),
		},
		{
			name:  "orderby id both directions",
			input: "$orderby=@iot.id asc,@iot.id desc",
			expected: query.New().
				AddOrderBy(query.NewPath(model.IDProperty), false).
				AddOrderBy(query.NewPath(model.IDProperty), true),
		},
		{
			name:  "expand with nested options",
			input: "$expand=Rooms($filter=value eq 1;$top=10)",
			expected: query.New().AddExpand(npRooms,
				query.New().SetFilter(query.Eq(query.NewPath(epValue), query.Int(1))).SetTop(10)),
		},
		{
			name:     "expand without options",
			input:    "$expand=Rooms",
			expected: query.New().AddExpand(npRooms, nil),
		},
		{
			name:  "multi segment expand nests",
			input: "$expand=Rooms/Doors($select=name)",
			expected: query.New().AddExpand(npRooms,
				query.New().AddExpand(npDoors, query.New().AddSelect(epName))),
		},
		{
			name:  "deep expands sharing a prefix merge",
			input: "$expand=Rooms/House,Rooms/Doors",
			expected: query.New().AddExpand(npRooms,
				query.New().AddExpand(npHouse, nil).AddExpand(npDoors, nil)),
		},
		{
			name:  "deep expand merges into nested options",
			input: "$expand=Rooms($top=2),Rooms/Doors($select=name)",
			expected: query.New().AddExpand(npRooms,
				query.New().SetTop(2).AddExpand(npDoors, query.New().AddSelect(epName))),
		},
		{
			name:  "distinct select with custom path",
			input: "$select=distinct:id,name,properties/my/type",
			expected: query.New().SetSelectDistinct(true).
				AddSelect(model.IDProperty, epName, model.NewCustomProperty(epProperties, "my", "type")),
		},
		{
			name:  "navigation hops in filter",
			input: "$filter=House/name eq 'Villa ''Kunterbunt'''",
			expected: query.New().SetFilter(
				query.Eq(query.NewPath(npHouse, epName), query.Str("Villa 'Kunterbunt'"))),
		},
		{
			name:  "precedence of and over or",
			input: "$filter=value lt 1 or value gt 5 and not name eq 'x'",
			expected: query.New().SetFilter(query.Or(
				query.Lt(query.NewPath(epValue), query.Int(1)),
				query.And(
					query.Gt(query.NewPath(epValue), query.Int(5)),
					query.Not(query.Eq(query.NewPath(epName), query.Str("x")))))),
		},
		{
			name:  "functions and date-times",
			input: "$filter=year(time) eq 2024 and time ge 2024-05-01T10:00:00Z",
			expected: query.New().SetFilter(query.And(
				query.Eq(query.Fn(query.OpYear, query.NewPath(epTime)), query.Int(2024)),
				query.Ge(query.NewPath(epTime), query.DateTimeConstant{Value: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}))),
		},
		{
			name:  "array index in custom path",
			input: "$filter=properties/list[1] eq 2.5",
			expected: query.New().SetFilter(query.Eq(
				query.NewPath(model.NewCustomProperty(epProperties, "list", "1")), query.Double(2.5))),
		},
		{
			name:     "paging and format",
			input:    "$top=3&$skip=6&$count=true&$resultFormat=dataArray",
			expected: query.New().SetTop(3).SetSkip(6).SetCount(true).SetResultFormat("dataArray"),
		},
		{
			name:     "custom link expand",
			input:    "$expand=properties/owner.House",
			expected: query.New().AddExpand(model.NewCustomLink(epProperties, "House", "owner.House"), nil),
		},
		{
			name:     "empty",
			input:    "",
			expected: query.New(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(reg, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_DeepAndNestedExpandAgree(t *testing.T) {
	reg := testRegistry()

	deep, err := Parse(reg, "$expand=Rooms/House,Rooms/Doors")
	require.NoError(t, err)
	nested, err := Parse(reg, "$expand=Rooms($expand=House,Doors)")
	require.NoError(t, err)

	assert.Equal(t, nested, deep)
	assert.Len(t, deep.Expand, 1)
}

func TestParse_Errors(t *testing.T) {
	reg := testRegistry()

	inputs := []string{
		"$filter=nothing eq 1",
		"$filter=name eq",
		"$filter=(value gt 1",
		"$filter=name/sub eq 1",
		"$filter=frobnicate(name) eq 1",
		"$filter=length(name, name) eq 1",
		"$top=-1",
		"$skip=x",
		"$count=maybe",
		"$select=unknown",
		"$expand=name",
		"$expand=Rooms($top=1",
		"$orderby=name sideways",
		"$unknown=1",
		"$filter",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(reg, input)
			assert.ErrorIs(t, err, model.ErrInvalidQuery)
		})
	}
}

func TestLexer_Tokens(t *testing.T) {
	tokens, err := NewLexer("Datastream/@iot.id ge -3.5e2 and 'it''s' eq 2024-01-01T00:00:00Z").Tokenize()
	require.NoError(t, err)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_SLASH, TOKEN_IDENTIFIER, TOKEN_IDENTIFIER, TOKEN_DOUBLE,
		TOKEN_IDENTIFIER, TOKEN_STRING, TOKEN_IDENTIFIER, TOKEN_DATETIME, TOKEN_EOF,
	}, types)
	assert.Equal(t, "-3.5e2", tokens[4].Value)
	assert.Equal(t, "it's", tokens[6].Value)

	_, err = NewLexer("name eq 'open").Tokenize()
	assert.Error(t, err)
}
