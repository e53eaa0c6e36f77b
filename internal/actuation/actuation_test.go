package actuation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/notify"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query/parser"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	core *coremodel.Model
	m    *Model
	reg  *model.Registry
	c    *tables.Collection
	mgr  *crud.Manager
	mock sqlmock.Sqlmock
	sink *notify.Collector
	ctx  context.Context
	t    *testing.T
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := New(nil)
	m.Now = func() time.Time { return fixedNow }
	core, reg, c := coremodel.New(model.LongIDs{}, nil, m)

	sink := notify.NewCollector()
	mgr := crud.NewManager(db, func() *tables.Collection { return c }, crud.Options{Sink: sink})
	return &fixture{core: core, m: m, reg: reg, c: c, mgr: mgr, mock: mock, sink: sink, ctx: context.Background(), t: t}
}

func (f *fixture) path(raw string) *path.ResourcePath {
	rp, err := path.Parse(f.reg, raw)
	require.NoError(f.t, err)
	return rp
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestRegister_ExtendsThing(t *testing.T) {
	f := setup(t)

	assert.Len(t, f.reg.EntityTypes(), 11)
	assert.Same(t, f.m.TaskingCapability, f.reg.EntityType("TaskingCapabilities"))
	assert.Contains(t, f.core.Thing.NavigationProperties(), NPTaskingCapabilities)
	assert.Same(t, NPTaskingCapabilities, f.reg.NavigationProperty("TaskingCapabilities"))

	rp := f.path("/Things(1)/TaskingCapabilities(2)/Tasks")
	assert.Same(t, f.m.Task, rp.MainType())
	assert.True(t, rp.IsCollection())

	rp = f.path("/Actuators(3)/TaskingCapabilities(2)/Thing")
	assert.Same(t, f.core.Thing, rp.MainType())
}

func TestRegister_RequiresSensingModel(t *testing.T) {
	b := model.NewBuilder(model.LongIDs{}, nil)
	assert.Panics(t, func() { New(nil).Register(b) })
}

func TestCompile_ExpandTaskingCapabilities(t *testing.T) {
	f := setup(t)
	qry, err := parser.Parse(f.reg, "$expand=TaskingCapabilities($expand=Actuator($select=name))")
	require.NoError(t, err)

	res, err := compiler.New(f.c, compiler.DefaultOptions(), nil).ForPath(f.path("/Things(1)"), qry)
	require.NoError(t, err)

	main, args, err := res.Plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID", t0."NAME", t0."DESCRIPTION", t0."PROPERTIES" FROM "THINGS" t0 WHERE (t0."ID" = $1)`, main)
	assert.Equal(t, []interface{}{int64(1)}, args)

	require.Len(t, res.Expands, 1)
	exp := res.Expands[0]
	assert.Equal(t, NPTaskingCapabilities, exp.Property)
	sql, args, err := exp.Result.Plan.Render(map[string]interface{}{compiler.ParentParam: int64(1)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ID", t0."NAME", t0."DESCRIPTION", t0."PROPERTIES", t0."TASKING_PARAMETERS" `+
		`FROM "TASKINGCAPABILITIES" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") `+
		`WHERE (t1."ID" = $1) ORDER BY t0."ID" LIMIT $2`, sql)
	assert.Equal(t, []interface{}{int64(1), int64(101)}, args)

	require.Len(t, exp.Result.Expands, 1)
	actuator := exp.Result.Expands[0]
	assert.Equal(t, NPActuator, actuator.Property)
	sql, _, err = actuator.Result.Plan.Render(map[string]interface{}{compiler.ParentParam: int64(2)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."NAME" FROM "ACTUATORS" t0 INNER JOIN "TASKINGCAPABILITIES" t1 ON (t1."ACTUATOR_ID" = t0."ID") WHERE (t1."ID" = $1)`, sql)
}

func TestGet_ExpandTaskingCapabilities(t *testing.T) {
	f := setup(t)
	qry, err := parser.Parse(f.reg, "$expand=TaskingCapabilities")
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(q(`SELECT t0."ID", t0."NAME", t0."DESCRIPTION", t0."PROPERTIES" FROM "THINGS" t0 WHERE (t0."ID" = $1)`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "NAME", "DESCRIPTION", "PROPERTIES"}).
			AddRow(int64(1), "Greenhouse", "Irrigated bed", `{}`))
	f.mock.ExpectQuery(q(`FROM "TASKINGCAPABILITIES" t0 INNER JOIN "THINGS" t1 ON (t1."ID" = t0."THING_ID") WHERE (t1."ID" = $1)`)).
		WithArgs(int64(1), int64(101)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "NAME", "DESCRIPTION", "PROPERTIES", "TASKING_PARAMETERS"}).
			AddRow(int64(2), "Valve", "Opens the sprinkler valve", `{}`, `{"type":"DataRecord"}`))
	f.mock.ExpectCommit()

	var thing *model.Entity
	err = f.mgr.Do(f.ctx, func(s *crud.Session) error {
		var err error
		thing, err = s.Get(f.ctx, f.path("/Things(1)"), qry)
		return err
	})
	require.NoError(t, err)

	capabilities := thing.RelatedSet(NPTaskingCapabilities)
	require.NotNil(t, capabilities)
	require.Equal(t, 1, capabilities.Len())
	valve := capabilities.Entities[0]
	assert.Equal(t, model.NewID(int64(2)), valve.ID())
	assert.Equal(t, "Valve", valve.Get(coremodel.EPName))
	assert.Equal(t, map[string]interface{}{"type": "DataRecord"}, valve.Get(EPTaskingParameters))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_TaskStampsCreationTime(t *testing.T) {
	f := setup(t)
	task := model.NewEntity(f.m.Task).
		Set(EPTaskingParameters, map[string]interface{}{"state": "open"})

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(q(`SELECT t0."ID" FROM "TASKINGCAPABILITIES" t0 WHERE (t0."ID" = $1)`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(2)))
	f.mock.ExpectQuery(q(`INSERT INTO "TASKS" ("CREATION_TIME", "TASKINGCAPABILITY_ID", "TASKING_PARAMETERS") VALUES ($1, $2, $3) RETURNING "ID"`)).
		WithArgs(sqlmock.AnyArg(), int64(2), `{"state":"open"}`).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(30)))
	f.mock.ExpectCommit()

	err := f.mgr.Do(f.ctx, func(s *crud.Session) error {
		return s.Create(f.ctx, f.path("/TaskingCapabilities(2)/Tasks"), task)
	})
	require.NoError(t, err)

	assert.Equal(t, model.NewID(int64(30)), task.ID())
	assert.Equal(t, model.Instant(fixedNow), task.Get(EPCreationTime))
	require.Len(t, f.sink.Messages(), 1)
	assert.Equal(t, model.EventCreate, f.sink.Messages()[0].Event)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_TaskKeepsGivenCreationTime(t *testing.T) {
	m := New(nil)
	m.Now = func() time.Time { return fixedNow }
	coremodel.New(model.LongIDs{}, nil, m)

	given := model.Instant(fixedNow.Add(-time.Hour))
	task := model.NewEntity(m.Task).Set(EPCreationTime, given)
	require.NoError(t, m.stampCreationTime(context.Background(), nil, task))
	assert.Equal(t, given, task.Get(EPCreationTime))
}
