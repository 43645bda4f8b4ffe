package arasaka

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"

	postgresNotifyChannelRuntimeConfigUpdated = "arasaka_reload_runtime_config"
	postgresNotifyChannelStop                 = "arasaka_stop"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout    = 30 * time.Second
	dbNotifierSendTimeout = 15 * time.Second
	dbListenRetryInterval = 5 * time.Second
)

// ModelUnixTime is an embeddable model with millisecond Unix timestamps
// for creation and update, and soft deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// allModels is every table the bot uses, in migration order
func allModels() []any {
	return []any{
		&RuntimeConfig{},
		&InteractionLog{},
		&CommandAnalytics{},
		&EventRecord{},
		&EventHosted{},
		&DiscordToRoblox{},
		&Administrator{},
		&AdminLog{},
		&Blacklist{},
	}
}

// DBI is the write interface to the local database. Reads go through
// DB() directly.
type DBI interface {
	DB() *gorm.DB
	Create(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Updates(ctx context.Context, model any, values any) (rowsAffected int64, err error)
	Save(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Delete(ctx context.Context, value any, conds ...any) (rowsAffected int64, err error)
	Transaction(
		ctx context.Context,
		fc func(tx *gorm.DB) error,
		opts ...*sql.TxOptions,
	) (err error)
}

// database wraps a gorm connection. Unless concurrent writes are
// enabled, writes are serialized (sqlite only allows a single writer).
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	enableConcurrentWrites bool
}

func NewDatabase(
	db *gorm.DB,
	logger *slog.Logger,
	enableConcurrentWrites bool,
) DBI {
	if logger == nil {
		logger = slog.Default()
	}
	return &database{
		db:                     db,
		logger:                 logger,
		enableConcurrentWrites: enableConcurrentWrites,
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

// begin locks for writing (if needed), and applies the default operation
// timeout if ctx has no deadline. The returned func must be called when
// the write completes.
func (d *database) begin(ctx context.Context) (context.Context, func()) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
	}
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
	}
	return ctx, func() {
		cancel()
		if !d.enableConcurrentWrites {
			d.mu.Unlock()
		}
	}
}

func (d *database) Create(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	ctx, done := d.begin(ctx)
	defer done()

	db := d.db.WithContext(ctx)
	if len(omit) > 0 {
		db = db.Omit(omit...)
	}
	rv := db.Create(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Updates(ctx context.Context, model, values any) (
	rowsAffected int64,
	err error,
) {
	ctx, done := d.begin(ctx)
	defer done()

	rv := d.db.WithContext(ctx).Model(model).Updates(values)
	return rv.RowsAffected, rv.Error
}

func (d *database) Save(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	ctx, done := d.begin(ctx)
	defer done()

	db := d.db.WithContext(ctx)
	if len(omit) > 0 {
		db = db.Omit(omit...)
	}
	rv := db.Save(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Delete(ctx context.Context, value any, conds ...any) (
	rowsAffected int64,
	err error,
) {
	ctx, done := d.begin(ctx)
	defer done()

	rv := d.db.WithContext(ctx).Delete(value, conds...)
	return rv.RowsAffected, rv.Error
}

func (d *database) Transaction(
	ctx context.Context,
	fc func(tx *gorm.DB) error,
	opts ...*sql.TxOptions,
) error {
	ctx, done := d.begin(ctx)
	defer done()
	return d.db.WithContext(ctx).Transaction(fc, opts...)
}

// CreateDB opens the database and migrates every table.
func CreateDB(
	ctx context.Context,
	databaseType string,
	database string,
) (*gorm.DB, error) {
	handler := newHandler(os.Stdout, slog.LevelWarn)
	dbLogger := slog.New(handler).With(loggerNameKey, "database")
	dbLogger.InfoContext(
		ctx,
		"initializing database",
		"database_type", databaseType,
		"database", database,
	)

	db, err := getDB(databaseType, database, newGORMLogger(handler, DefaultDatabaseSlowThreshold))
	if err != nil {
		return nil, err
	}
	if err = migrate(ctx, db); err != nil {
		return db, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			return tx.AutoMigrate(allModels()...)
		},
	)
}

func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch databaseType {
	case dbTypeSQLite:
		if parentDir := filepath.Dir(database); parentDir != "" {
			if err := os.MkdirAll(parentDir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, err
			}
		}
		db, err := gorm.Open(sqlite.Open(database), gormConfig)
		if err != nil {
			return nil, err
		}
		return db, configureSQLite(db)
	case dbTypePostgres:
		return gorm.Open(postgres.Open(database), gormConfig)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}

func configureSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
	sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
	sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
	for _, pragma := range sqliteExecPragma {
		if err = db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error executing %q: %w", pragma, err)
		}
	}
	return nil
}

// DBNotifier tells every running bot sharing the database that runtime
// config was changed, or that they should stop. With sqlite there's only
// ever one process, so signals are delivered directly.
type DBNotifier interface {
	RuntimeConfigChannelName() string
	ReloadRuntimeConfig(context.Context) bool
	StopChannelName() string
	Stop(context.Context) bool
	ID() string
	Listen(ctx context.Context, channel string) error
}

func newDBNotifier(b *Bot) (DBNotifier, error) {
	notifyID := uuid.NewString()
	log := b.logger.With(loggerNameKey, "db_notifier")
	switch b.config.DatabaseType {
	case dbTypeSQLite:
		return &sqliteNotifier{logger: log, b: b, id: notifyID}, nil
	case dbTypePostgres:
		return &postgresNotifier{logger: log, b: b, id: notifyID}, nil
	default:
		return nil, fmt.Errorf("invalid database type: %q", b.config.DatabaseType)
	}
}

type sqliteNotifier struct {
	logger *slog.Logger
	b      *Bot
	id     string
}

func (s *sqliteNotifier) Listen(_ context.Context, channel string) error {
	s.logger.Debug("listener called", "channel", channel)
	return nil
}

func (sqliteNotifier) StopChannelName() string {
	return ""
}

func (sqliteNotifier) RuntimeConfigChannelName() string {
	return ""
}

func (s *sqliteNotifier) ID() string {
	return s.id
}

func (s *sqliteNotifier) Stop(ctx context.Context) bool {
	s.logger.Info("notifying stop signal")
	select {
	case s.b.signalStop <- struct{}{}:
		return true
	case <-ctx.Done():
		s.logger.Warn("timeout sending stop signal")
		return false
	}
}

func (s *sqliteNotifier) ReloadRuntimeConfig(ctx context.Context) bool {
	s.logger.Info("notifying runtime config reload")
	select {
	case s.b.triggerRuntimeConfigRefreshCh <- true:
		return true
	case <-ctx.Done():
		s.logger.Warn("timeout sending runtime config refresh signal")
		return false
	}
}

// postgresNotifier uses LISTEN/NOTIFY. Payloads are the sender's ID,
// so a process ignores its own notifications.
type postgresNotifier struct {
	b      *Bot
	logger *slog.Logger
	id     string
}

func (postgresNotifier) RuntimeConfigChannelName() string {
	return postgresNotifyChannelRuntimeConfigUpdated
}

func (postgresNotifier) StopChannelName() string {
	return postgresNotifyChannelStop
}

func (p *postgresNotifier) ID() string {
	return p.id
}

func (p *postgresNotifier) notify(ctx context.Context, channel string) bool {
	err := p.b.writeDB.DB().WithContext(ctx).Exec(
		"SELECT pg_notify(?, ?)",
		channel,
		p.ID(),
	).Error
	if err != nil {
		p.logger.ErrorContext(ctx, "error sending NOTIFY", "channel", channel, tint.Err(err))
		return false
	}
	p.logger.InfoContext(ctx, "sent notification", "channel", channel, "id", p.ID())
	return true
}

func (p *postgresNotifier) Stop(ctx context.Context) bool {
	return p.notify(ctx, p.StopChannelName())
}

func (p *postgresNotifier) ReloadRuntimeConfig(ctx context.Context) bool {
	// reload locally too, NOTIFY payloads from ourselves are ignored
	select {
	case p.b.triggerRuntimeConfigRefreshCh <- true:
	case <-ctx.Done():
		return false
	}
	return p.notify(ctx, p.RuntimeConfigChannelName())
}

func (p *postgresNotifier) Listen(ctx context.Context, channel string) error {
	logger := p.logger.With("channel", channel)
	logger.InfoContext(ctx, "starting db listener")

	config, err := pgxpool.ParseConfig(p.b.config.Database)
	if err != nil {
		return fmt.Errorf("error parsing database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("error creating connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("error acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, fmt.Sprintf("LISTEN %s", channel)); err != nil {
		return fmt.Errorf("error setting up listener: %w", err)
	}

	for ctx.Err() == nil {
		notification, e := conn.Conn().WaitForNotification(ctx)
		if e != nil {
			if ctx.Err() != nil {
				break
			}
			logger.ErrorContext(ctx, "error waiting for notification", tint.Err(e))
			time.Sleep(dbListenRetryInterval)
			continue
		}
		if notification.Payload == p.ID() {
			logger.DebugContext(ctx, "ignoring notification from self")
			continue
		}
		logger.InfoContext(ctx, "received notification", "payload", notification.Payload)

		sendCtx, cancel := context.WithTimeout(ctx, dbNotifierSendTimeout)
		switch channel {
		case p.RuntimeConfigChannelName():
			select {
			case p.b.triggerRuntimeConfigRefreshCh <- true:
			case <-sendCtx.Done():
				logger.Warn("timeout sending runtime config refresh signal")
			}
		case p.StopChannelName():
			select {
			case p.b.signalStop <- struct{}{}:
			case <-sendCtx.Done():
				logger.Warn("timeout sending stop signal")
			}
		}
		cancel()
	}
	return ctx.Err()
}
