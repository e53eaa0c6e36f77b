package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/actuation"
	"github.com/conduit-lang/sensorthings/internal/cli/config"
	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/logging"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/notify"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
	"github.com/conduit-lang/sensorthings/internal/query/parser"
)

// openDB opens the database pool. Tests replace it.
var openDB = func(url string) (*sql.DB, error) {
	return sql.Open("pgx", url)
}

// environment is everything a command needs to serve a request
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	model  *coremodel.Model
	reg    *model.Registry
	tables *tables.Collection

	closers []func() error
}

func (o *rootOptions) load() (*environment, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logging.New(logging.Options{Level: level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}

	var fragments []coremodel.Fragment
	if cfg.Plugins.Actuation {
		fragments = append(fragments, actuation.New(logger))
	}
	m, reg, c := coremodel.New(cfg.IDCodec(), logger, fragments...)
	o.registry = reg
	return &environment{cfg: cfg, logger: logger, model: m, reg: reg, tables: c}, nil
}

func (e *environment) ids() model.IDCodec {
	return e.reg.IDs()
}

func (e *environment) compiler() *compiler.Compiler {
	return compiler.New(e.tables, e.cfg.CompilerOptions(), e.logger)
}

// connect opens the database and the change notification sink
func (e *environment) connect(ctx context.Context) (*crud.Manager, error) {
	url := e.cfg.Database.URL
	if url == "" {
		return nil, fmt.Errorf("no database configured: set database.url or %s_DATABASE_URL", config.EnvPrefix)
	}
	db, err := openDB(url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.closers = append(e.closers, db.Close)
	db.SetMaxOpenConns(e.cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(e.cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var sink notify.Sink = notify.Discard{}
	if e.cfg.Notify.Enabled {
		pub, err := notify.NewRedisPublisher(e.cfg.RedisConfig(), e.ids(), e.logger)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pub.Close)
		sink = pub
	}

	return crud.NewManager(db, func() *tables.Collection { return e.tables }, crud.Options{
		Compiler: e.cfg.CompilerOptions(),
		IDMode:   e.cfg.IDMode(),
		Sink:     sink,
		Logger:   e.logger,
	}), nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Debug("close failed", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// parseRequest parses a resource path and its optional query options
func (o *rootOptions) parseRequest(env *environment, args []string) (*path.ResourcePath, *query.Query, error) {
	o.rawPath = args[0]
	rp, err := path.Parse(env.reg, args[0])
	if err != nil {
		return nil, nil, err
	}
	raw := ""
	if len(args) > 1 {
		raw = args[1]
	}
	q, err := parser.Parse(env.reg, raw)
	if err != nil {
		return nil, nil, err
	}
	return rp, q, nil
}

// readInput reads a request body from a file, or from stdin for "-"
func readInput(in io.Reader, name string) ([]byte, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("read %s: empty body", name)
	}
	return data, nil
}
