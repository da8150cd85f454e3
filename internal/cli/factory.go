// Package cli holds the wiring shared by the scalux commands: building the
// state store and engine from a project configuration.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/scalux/scalux"
	"github.com/scalux/scalux/internal/config"
	"github.com/scalux/scalux/pkg/adapters/bolt"
	"github.com/scalux/scalux/pkg/adapters/file"
	"github.com/scalux/scalux/pkg/adapters/memory"
	"github.com/scalux/scalux/pkg/adapters/redis"
	"github.com/scalux/scalux/pkg/ports"
)

// Persistence bundles the store selected by configuration with its optional
// distributed locker.
type Persistence struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker
	closer io.Closer
}

// Close releases the underlying database or connection, if any.
func (p *Persistence) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// OpenStore builds the state store named by cfg.Store.Driver.
func OpenStore(cfg *config.Config) (*Persistence, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return &Persistence{Store: memory.NewStore()}, nil
	case config.DriverFile:
		return &Persistence{Store: file.New(cfg.Store.Path)}, nil
	case config.DriverBolt:
		s, err := bolt.Open(boltPath(cfg.Store.Path))
		if err != nil {
			return nil, err
		}
		return &Persistence{Store: s, closer: s}, nil
	case config.DriverRedis:
		rc := cfg.Store.Redis
		s := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithTTL(cfg.Store.TTL), redis.WithPrefix(rc.Prefix))
		if err := s.Client().Ping(context.Background()).Err(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", rc.Addr, err)
		}
		return &Persistence{
			Store:  s,
			Locker: redis.NewLocker(s.Client(), s.Prefix()),
			closer: s,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// boltPath treats an extension-less store path as a directory holding
// sessions.db.
func boltPath(p string) string {
	if filepath.Ext(p) != "" {
		return p
	}
	return filepath.Join(p, "sessions.db")
}

// NewEngine compiles the configured tree and attaches the store.
// Extra options are applied last.
func NewEngine(cfg *config.Config, p *Persistence, logger *slog.Logger, extra ...scalux.Option) (*scalux.Engine, error) {
	opts := []scalux.Option{
		scalux.WithLogger(logger),
		scalux.WithOptions(cfg.Options),
		scalux.WithHistoryLimit(cfg.History.Limit),
	}
	if p != nil {
		opts = append(opts, scalux.WithStore(p.Store))
		if p.Locker != nil {
			opts = append(opts, scalux.WithLocker(p.Locker))
		}
	}
	opts = append(opts, extra...)

	eng, err := scalux.New(cfg.Tree, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}
