package store

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
)

// Gorm implements Store on top of GORM.
type Gorm struct {
	db  *gorm.DB
	log *logger.Logger
}

// compile-time assertion
var _ Store = (*Gorm)(nil)

// Open connects to the database, runs migrations, and returns the store.
// The sqlite DSN ":memory:" yields an isolated in-memory database.
func Open(dsn string, log *logger.Logger) (*Gorm, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Database(err)
	}

	g := &Gorm{db: db, log: log.WithComponent("store")}
	if err := g.migrate(); err != nil {
		return nil, err
	}

	g.log.Info("store opened", logger.Fields("dsn", dsn))
	return g, nil
}

// NewGorm wraps an existing GORM handle (used by tests and custom wiring).
func NewGorm(db *gorm.DB, log *logger.Logger) (*Gorm, error) {
	g := &Gorm{db: db, log: log.WithComponent("store")}
	if err := g.migrate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gorm) migrate() error {
	models := []any{
		&User{}, &Role{}, &Permission{}, &ExternalIdentity{},
		&RefreshSession{}, &ActionToken{}, &userRole{}, &rolePermission{},
	}
	for _, m := range models {
		if err := g.db.AutoMigrate(m); err != nil {
			return errors.Database(err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- error translation ---

// isDuplicateErr detects uniqueness violations across drivers.
func isDuplicateErr(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// duplicate wraps a driver error as a field-specific DuplicateError. The
// columns slice maps constraint substrings to fields; the first match wins,
// fallback applies when the driver message names no known column.
func duplicate(err error, fallback DuplicateField, columns map[string]DuplicateField) error {
	msg := strings.ToLower(err.Error())
	for substr, field := range columns {
		if strings.Contains(msg, substr) {
			return &DuplicateError{Field: field, Cause: err}
		}
	}
	return &DuplicateError{Field: fallback, Cause: err}
}

var userColumns = map[string]DuplicateField{
	"users.email":    DupEmail,
	"users.username": DupUsername,
	"users.phone":    DupPhone,
}

// notFound reports whether err is the driver's record-not-found, which the
// store contract maps to (nil, nil).
func notFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

func (g *Gorm) conn(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx)
}
