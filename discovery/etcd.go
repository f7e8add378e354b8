package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

// EtcdConfig configures an Etcd session.
type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration // 0 means the etcd client default
	SessionTTL  int           // seconds; lease TTL behind ephemeral nodes, default 10
	Logger      *zap.Logger
}

// Etcd implements Client on etcd v3.
//
// etcd has no node types, so ephemerality is carried by a lease: ephemeral keys are
// written with the lease of a concurrency.Session, which the client keeps alive in
// the background. If the process dies the lease expires after SessionTTL and the
// keys go with it. Keys are the naming paths themselves:
//
//	/Arith       → ""                 (persistent)
//	/Arith/Add   → "127.0.0.1:9000"   (ephemeral, session lease)
type Etcd struct {
	cfg    EtcdConfig
	logger *zap.Logger

	mu      sync.RWMutex
	client  *clientv3.Client
	session *concurrency.Session
}

var _ Client = (*Etcd)(nil)

// NewEtcd creates an unconnected session; call Connect before use.
func NewEtcd(cfg EtcdConfig) *Etcd {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &Etcd{cfg: cfg, logger: logger.Named("discovery")}
}

// Connect creates the etcd client, checks that the first endpoint answers and
// opens the lease session used for ephemeral nodes. Connecting twice is a no-op.
func (e *Etcd) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return nil
	}
	if len(e.cfg.Endpoints) == 0 {
		return fmt.Errorf("%w: no endpoints configured", ErrConnect)
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   e.cfg.Endpoints,
		DialTimeout: e.cfg.DialTimeout,
		Context:     context.Background(),
		Logger:      e.logger.Named("etcd"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	// clientv3.New does not wait for the cluster; ask it for its status so a wrong
	// endpoint fails here rather than on the first registration.
	if _, err := c.Status(ctx, e.cfg.Endpoints[0]); err != nil {
		c.Close()
		return fmt.Errorf("%w: status %s: %v", ErrConnect, e.cfg.Endpoints[0], err)
	}

	session, err := concurrency.NewSession(c, concurrency.WithTTL(e.cfg.SessionTTL))
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: session: %v", ErrConnect, err)
	}

	e.client = c
	e.session = session
	e.logger.Info("connected",
		zap.Strings("endpoints", e.cfg.Endpoints),
		zap.Int64("lease", int64(session.Lease())),
	)
	return nil
}

func (e *Etcd) conn() (*clientv3.Client, *concurrency.Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, nil, ErrNotConnected
	}
	return e.client, e.session, nil
}

// CreatePath writes the node. Persistent nodes are created only if absent,
// ephemeral nodes are (re)written under the session lease.
func (e *Etcd) CreatePath(ctx context.Context, path string, value []byte, ephemeral bool) error {
	if !validPath(path) {
		return fmt.Errorf("%w: invalid path %q", ErrWrite, path)
	}
	c, session, err := e.conn()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}

	if ephemeral {
		if _, err := c.Put(ctx, path, string(value), clientv3.WithLease(session.Lease())); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}
		e.logger.Debug("ephemeral node created", zap.String("path", path), zap.ByteString("value", value))
		return nil
	}

	// Put only when the key has never been created, so an existing value survives.
	resp, err := c.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, string(value))).
		Commit()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if resp.Succeeded {
		e.logger.Debug("persistent node created", zap.String("path", path))
	}
	return nil
}

// Lookup reads the value at path straight from etcd.
func (e *Etcd) Lookup(ctx context.Context, path string) (string, bool, error) {
	c, _, err := e.conn()
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrLookup, path, err)
	}
	resp, err := c.Get(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrLookup, path, err)
	}
	if len(resp.Kvs) == 0 || len(resp.Kvs[0].Value) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Delete removes the key at path.
func (e *Etcd) Delete(ctx context.Context, path string) error {
	c, _, err := e.conn()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if _, err := c.Delete(ctx, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

// Close revokes the session lease, which deletes every ephemeral node it owns,
// then closes the client.
func (e *Etcd) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	if err := e.session.Close(); err != nil {
		e.logger.Warn("revoke session lease", zap.Error(err))
	}
	err := e.client.Close()
	e.client, e.session = nil, nil
	return err
}
