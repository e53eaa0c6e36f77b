package compiler

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query/parser"
)

func assertGolden(t *testing.T, name, sql string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(sql+"\n"))
}

type fixture struct {
	reg      *model.Registry
	compiler *Compiler
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	_, reg, c := coremodel.New(model.LongIDs{}, nil)
	return &fixture{reg: reg, compiler: New(c, DefaultOptions(), logger)}
}

func (f *fixture) compile(t *testing.T, rawPath, rawQuery string) (*Result, error) {
	t.Helper()
	rp, err := path.Parse(f.reg, rawPath)
	require.NoError(t, err)
	q, err := parser.Parse(f.reg, rawQuery)
	require.NoError(t, err)
	return f.compiler.ForPath(rp, q)
}

func TestCompile_NestedCollection(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Things(1)/Datastreams", "")
	require.NoError(t, err)

	sql, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID", t0."NAME", t0."DESCRIPTION", t0."OBSERVATION_TYPE", t0."UNIT_OF_MEASUREMENT", t0."OBSERVED_AREA", `+
		`t0."PHENOMENON_TIME_START", t0."PHENOMENON_TIME_END", t0."RESULT_TIME_START", t0."RESULT_TIME_END", t0."PROPERTIES" `+
		`FROM "DATASTREAMS" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") WHERE (t1."ID" = $1) ORDER BY t0."ID" LIMIT $2`, sql)
	assert.Equal(t, []interface{}{int64(1), int64(101)}, args)

	assert.False(t, res.Single)
	assert.Equal(t, int64(100), res.Top)
	assert.Nil(t, res.Count)
	assert.Len(t, res.Entries, 9)
	assert.Len(t, res.Columns, 11)
}

func TestCompile_FilterOrderPaging(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Datastreams(1)/Observations",
		"$filter=result gt 5 and phenomenonTime ge 2024-01-01T00:00:00Z&$select=id,result&$orderby=phenomenonTime desc&$top=10&$skip=20&$count=true")
	require.NoError(t, err)

	sql, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assertGolden(t, "filter_order_paging", sql)
	assert.Equal(t, []interface{}{
		int64(1), int64(5), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), int64(11), int64(20),
	}, args)

	require.NotNil(t, res.Count)
	countSQL, _, err := res.Count.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "OBSERVATIONS" t0 INNER JOIN "DATASTREAMS" t1 ON (t1."ID" = t0."DATASTREAM_ID") `+
		`WHERE ((t1."ID" = $1) AND (t0."RESULT_NUMBER" > $2) AND (t0."PHENOMENON_TIME_START" >= $3))`, countSQL)
	assert.Equal(t, int64(10), res.Top)
	assert.Equal(t, int64(20), res.Skip)
}

func TestCompile_ManyToManyIsDistinct(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Locations(2)/Things", "$filter=Datastreams/name eq 'x'&$count=true")
	require.NoError(t, err)

	sql, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assertGolden(t, "many_to_many_distinct", sql)
	assert.Equal(t, []interface{}{int64(2), "x", int64(101)}, args)
	assert.True(t, res.Plan.Distinct)

	countSQL, _, err := res.Count.SQL()
	require.NoError(t, err)
	assert.Contains(t, countSQL, `SELECT COUNT(DISTINCT t0."ID") FROM "THINGS" t0`)
}

func TestCompile_ExpandBindsParent(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Things", "$select=name&$expand=Datastreams($select=name;$top=2;$count=true)")
	require.NoError(t, err)

	// the expand needs the parent id
	main, _, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID", t0."NAME" FROM "THINGS" t0 ORDER BY t0."ID" LIMIT $1`, main)

	require.Len(t, res.Expands, 1)
	exp := res.Expands[0]
	assert.Equal(t, coremodel.NPDatastreams, exp.Property)

	_, _, err = exp.Result.Plan.SQL()
	assert.EqualError(t, err, `parameter "parent" is not bound`)

	sql, args, err := exp.Result.Plan.Render(map[string]interface{}{ParentParam: int64(4)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."NAME" FROM "DATASTREAMS" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") `+
		`WHERE (t1."ID" = $1) ORDER BY t0."ID" LIMIT $2`, sql)
	assert.Equal(t, []interface{}{int64(4), int64(3)}, args)

	require.NotNil(t, exp.Result.Count)
	countSQL, countArgs, err := exp.Result.Count.Render(map[string]interface{}{ParentParam: int64(4)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "DATASTREAMS" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") WHERE (t1."ID" = $1)`, countSQL)
	assert.Equal(t, []interface{}{int64(4)}, countArgs)
}

func TestCompile_ExpandSingle(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Observations(9)", "$expand=Datastream($select=id)")
	require.NoError(t, err)
	assert.True(t, res.Single)
	assert.Nil(t, res.Plan.Limit)

	require.Len(t, res.Expands, 1)
	sub := res.Expands[0].Result
	assert.True(t, sub.Single)
	assert.Nil(t, sub.Count)
	sql, _, err := sub.Plan.Render(map[string]interface{}{ParentParam: int64(9)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID" FROM "DATASTREAMS" t0 INNER JOIN "OBSERVATIONS" t1 ON (t1."DATASTREAM_ID" = t0."ID") WHERE (t1."ID" = $1)`, sql)
}

func TestCompile_PathWalksAreNotDistinct(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		path string
		want string
	}{
		{
			path: "/Observations(1)/Datastream",
			want: `SELECT t0."ID" FROM "DATASTREAMS" t0 INNER JOIN "OBSERVATIONS" t1 ON (t1."DATASTREAM_ID" = t0."ID") WHERE (t1."ID" = $1)`,
		},
		{
			path: "/Observations(1)/Datastream/Thing",
			want: `SELECT t0."ID" FROM "THINGS" t0 INNER JOIN "DATASTREAMS" t1 ON (t1."THING_ID" = t0."ID") ` +
				`INNER JOIN "OBSERVATIONS" t2 ON (t2."DATASTREAM_ID" = t1."ID") WHERE (t2."ID" = $1)`,
		},
		{
			path: "/Things(1)/Datastreams(2)",
			want: `SELECT t0."ID" FROM "DATASTREAMS" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") ` +
				`WHERE ((t0."ID" = $1) AND (t1."ID" = $2))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := f.compile(t, tt.path, "$select=id")
			require.NoError(t, err)
			assert.False(t, res.Plan.Distinct)
			sql, _, err := res.Plan.SQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}

	// link tables always mark the plan distinct
	res, err := f.compile(t, "/Things(1)/Locations(2)", "$select=id")
	require.NoError(t, err)
	assert.True(t, res.Plan.Distinct)

	// a to-many hop inside the filter still repeats rows
	res, err = f.compile(t, "/Observations(1)/Datastream/Thing", "$filter=Datastreams/name eq 'x'&$expand=Datastreams")
	require.NoError(t, err)
	assert.True(t, res.Plan.Distinct)
	require.Len(t, res.Expands, 1)
	assert.False(t, res.Expands[0].Result.Plan.Distinct)
}

func TestCompile_CustomProperty(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Things", "$filter=properties/building eq 'A'&$select=id")
	require.NoError(t, err)

	sql, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID" FROM "THINGS" t0 WHERE ((t0."PROPERTIES" #>> $1) = $2) ORDER BY t0."ID" LIMIT $3`, sql)
	assert.Equal(t, []interface{}{pq.StringArray{"building"}, "A", int64(101)}, args)
}

func TestCompile_NullComparison(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.compile(t, "/Observations", "$filter=result eq null&$select=id")
	require.NoError(t, err)

	sql, _, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE ((t0."RESULT_NUMBER" IS NULL) AND (t0."RESULT_STRING" IS NULL) AND (t0."RESULT_BOOLEAN" IS NULL) AND (t0."RESULT_JSON" IS NULL))`)
}

func TestCompile_TopIsClamped(t *testing.T) {
	_, reg, c := coremodel.New(model.LongIDs{}, nil)
	comp := New(c, Options{DefaultTop: 5, MaxTop: 50}, nil)

	q, err := parser.Parse(reg, "$top=500")
	require.NoError(t, err)
	res, err := comp.ForPath(path.New(reg.EntityType("Sensors")), q)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Top)
	assert.Equal(t, int64(51), *res.Plan.Limit)

	res, err = comp.ForPath(path.New(reg.EntityType("Sensors")), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Top)
}

func TestCompile_PropertyPathIgnoresSelectExpand(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, zap.New(core))

	rp, err := path.Parse(f.reg, "/Observations(5)/result")
	require.NoError(t, err)
	q, err := parser.Parse(f.reg, "$select=id&$expand=Datastream")
	require.NoError(t, err)

	res, err := f.compiler.ForPath(rp, q)
	require.NoError(t, err)
	assert.Equal(t, []*model.Property{model.IDProperty}, q.Select)
	assert.Len(t, q.Expand, 1)
	assert.Empty(t, res.Query.Select)
	assert.Empty(t, res.Query.Expand)
	assert.Empty(t, res.Expands)
	assert.Equal(t, coremodel.EPResult, res.Property)
	assert.Equal(t, 1, logs.FilterMessage("select and expand are ignored for property paths").Len())

	sql, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."RESULT_TYPE", t0."RESULT_NUMBER", t0."RESULT_STRING", t0."RESULT_BOOLEAN", t0."RESULT_JSON" `+
		`FROM "OBSERVATIONS" t0 WHERE (t0."ID" = $1)`, sql)
	assert.Equal(t, []interface{}{int64(5)}, args)
}

func TestCompile_InvalidQueries(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name  string
		path  string
		query string
	}{
		{name: "string compared with number", path: "/Things", query: "$filter=name gt 5"},
		{name: "sub-path of result", path: "/Observations", query: "$filter=result/depth eq 1"},
		{name: "null ordering comparison", path: "/Things", query: "$filter=name gt null"},
		{name: "select of foreign property", path: "/Things", query: "$select=result"},
		{name: "expand of foreign navigation", path: "/Things", query: "$expand=Sensor"},
		{name: "filter through foreign navigation", path: "/Sensors", query: "$filter=Thing/name eq 'x'"},
		{name: "id compared with text", path: "/Things", query: "$filter=id eq 'abc'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.compile(t, tt.path, tt.query)
			assert.ErrorIs(t, err, model.ErrInvalidQuery)
		})
	}
}
