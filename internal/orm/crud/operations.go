// Package crud runs reads and writes of entities against the relational
// store. A Manager owns the table collection and the compiler; a Session is
// the work of one request inside one transaction.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/notify"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/orm/transaction"
)

// IDGenerationMode decides who assigns the id of a new entity
type IDGenerationMode string

const (
	// ServerGeneratedOnly rejects client supplied ids
	ServerGeneratedOnly IDGenerationMode = "ServerGeneratedOnly"
	// ServerAndClientGenerated uses a client id when given, else generates one
	ServerAndClientGenerated IDGenerationMode = "ServerAndClientGenerated"
	// ClientGeneratedOnly requires the client to supply the id
	ClientGeneratedOnly IDGenerationMode = "ClientGeneratedOnly"
)

// ParseIDGenerationMode parses a configured mode. The empty string selects
// ServerGeneratedOnly.
func ParseIDGenerationMode(s string) (IDGenerationMode, error) {
	switch mode := IDGenerationMode(s); mode {
	case "":
		return ServerGeneratedOnly, nil
	case ServerGeneratedOnly, ServerAndClientGenerated, ClientGeneratedOnly:
		return mode, nil
	}
	return "", fmt.Errorf("unknown id generation mode %q", s)
}

// Options configures a Manager
type Options struct {
	Compiler compiler.Options
	IDMode   IDGenerationMode
	// Sink receives the change messages of committed transactions
	Sink      notify.Sink
	Logger    *zap.Logger
	TxOptions []transaction.Option
}

// Manager runs sessions. The table collection is built on first use and
// is read-only afterwards, so a Manager is safe for concurrent use.
type Manager struct {
	tx     *transaction.Manager
	build  func() *tables.Collection
	opts   Options
	sink   notify.Sink
	logger *zap.Logger

	once     sync.Once
	tables   *tables.Collection
	compiler *compiler.Compiler
}

// NewManager creates a manager. build is called once, on first use.
func NewManager(db *sql.DB, build func() *tables.Collection, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.IDMode == "" {
		opts.IDMode = ServerGeneratedOnly
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard{}
	}
	return &Manager{
		tx:     transaction.NewManager(db, logger, opts.TxOptions...),
		build:  build,
		opts:   opts,
		sink:   sink,
		logger: logger.Named("crud"),
	}
}

func (m *Manager) init() {
	m.once.Do(func() {
		m.tables = m.build()
		m.compiler = compiler.New(m.tables, m.opts.Compiler, m.logger)
		m.logger.Debug("entity tables initialised", zap.Int("tables", len(m.tables.Tables())))
	})
}

// Tables returns the table collection
func (m *Manager) Tables() *tables.Collection {
	m.init()
	return m.tables
}

// Compiler returns the query compiler
func (m *Manager) Compiler() *compiler.Compiler {
	m.init()
	return m.compiler
}

// Do runs fn in a new session. The session commits when fn returns nil and
// rolls back otherwise. Conflicting transactions are retried, so fn must not
// keep state between calls. Change messages are published after commit.
func (m *Manager) Do(ctx context.Context, fn func(s *Session) error) error {
	m.init()

	defer func() {
		if r := recover(); r != nil {
			if ise, ok := r.(*model.IllegalStateError); ok {
				m.logger.Error("invariant violated, transaction rolled back", zap.String("error", ise.Msg))
			}
			panic(r)
		}
	}()

	var messages []*model.ChangeMessage
	err := m.tx.Run(ctx, func(tx *sql.Tx) error {
		s := &Session{m: m, tx: tx}
		if err := fn(s); err != nil {
			return err
		}
		messages = s.messages
		return nil
	})
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := m.sink.Publish(ctx, msg); err != nil {
			m.logger.Warn("change message not published",
				zap.String("event", msg.Event.String()),
				zap.String("type", msg.Entity.Type().Name),
				zap.Error(err))
		}
	}
	return nil
}

// Session is the request scope: one transaction and the change messages it
// produced. It implements tables.Session for entity hooks.
type Session struct {
	m        *Manager
	tx       *sql.Tx
	messages []*model.ChangeMessage
}

var _ tables.Session = (*Session)(nil)

// Querier returns the request transaction
func (s *Session) Querier() tables.Querier {
	return s.tx
}

// Tables returns the table collection
func (s *Session) Tables() *tables.Collection {
	return s.m.tables
}

// Emit buffers a change message until commit
func (s *Session) Emit(msg *model.ChangeMessage) {
	s.messages = append(s.messages, msg)
}

// Messages returns the change messages buffered so far
func (s *Session) Messages() []*model.ChangeMessage {
	return s.messages
}

func (s *Session) ids() model.IDCodec {
	return s.m.tables.Registry().IDs()
}
