package pal

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Session binds a configuration snapshot, a storage engine and a schema
// registry into one database handle. All CRUD entry points live on it.
//
// Writes serialize on one process-wide lock per Session; reads run
// concurrently under the read side of the same lock. No two write
// transactions ever interleave.
type Session struct {
	cfg  Config
	eng  Engine
	reg  *Registry
	log  *zap.Logger
	ciph *Cipher
	mu   sync.RWMutex
}

// NewSession constructs a Session. The configuration is read once here;
// switching databases means constructing a new Session.
func NewSession(cfg Config, eng Engine, reg *Registry, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{cfg: cfg, eng: eng, reg: reg, log: log}
	if cfg.Key != "" {
		ciph, err := NewCipher(cfg.Key)
		if err != nil {
			return nil, err
		}
		s.ciph = ciph
	}
	return s, nil
}

// Registry returns the schema registry the session resolves types from.
func (s *Session) Registry() *Registry { return s.reg }

func (s *Session) casing() Casing { return s.cfg.Casing() }

// transact runs fn inside exactly one engine transaction. The transaction
// is finalized on every exit path, a panic unwinding through included; it
// commits only when fn completed and returned nil. Nested orchestrator
// steps never call transact themselves.
func (s *Session) transact(fn func() error) (err error) {
	if err = s.eng.Begin(); err != nil {
		return persistErr("begin transaction", err)
	}
	completed := false
	defer func() {
		if completed && err == nil {
			s.eng.MarkSuccessful()
		}
		if endErr := s.eng.End(); endErr != nil && err == nil {
			err = persistErr("end transaction", endErr)
		}
	}()
	err = fn()
	completed = true
	return err
}

// checkConditions validates a caller-supplied where clause eagerly: the
// placeholder count must match the argument count before any storage call
// is made.
func checkConditions(where string, args []any) error {
	if strings.Count(where, "?") != len(args) {
		return ErrInvalidConditions
	}
	return nil
}

// inPlaceholders builds the placeholder list for an IN clause.
func inPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
