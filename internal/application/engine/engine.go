// Package engine is the accounting core: it owns the position ledger and the
// order book, applies fee recommendations before each trade, executes limit
// orders and detects rebalances after it, and settles rebalances on request.
//
// Every externally callable operation runs inside a txn scope, so it either
// applies in full (ledgers, pool state and transfers) or not at all.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ledger"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/alejandrodnm/rangekeeper/internal/signals"
	"github.com/alejandrodnm/rangekeeper/internal/txn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const (
	DefaultCooldown           = time.Hour
	DefaultMinConfidence      = 70
	DefaultMaxOrdersPerSwap   = 10
	DefaultMaxRebalanceChecks = 5
	DefaultFeeCeiling         = domain.MaxLPFee

	// MinCooldown is the smallest non-zero cooldown the owner may set.
	MinCooldown = time.Minute

	// MinConfidenceFloor is the lowest minimum confidence the owner may set.
	MinConfidenceFloor = 10
)

// Config holds the engine parameters. Cooldown and MinConfidence are the
// initial values; the owner can change them at runtime.
type Config struct {
	Cooldown           time.Duration
	MinConfidence      uint8
	MaxOrdersPerSwap   int
	MaxRebalanceChecks int
	FeeCeiling         uint32
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Cooldown:           DefaultCooldown,
		MinConfidence:      DefaultMinConfidence,
		MaxOrdersPerSwap:   DefaultMaxOrdersPerSwap,
		MaxRebalanceChecks: DefaultMaxRebalanceChecks,
		FeeCeiling:         DefaultFeeCeiling,
	}
}

// Options wires the engine to its collaborators. Sink, Store and Metrics are optional.
type Options struct {
	Pool    ports.PoolManager
	Signals *signals.Store
	Txn     *txn.Manager
	Clock   ports.Clock
	Owner   common.Address
	Sink    ports.EventSink
	Store   ports.StateStore
	Metrics ports.MetricsRecorder
	Config  Config
}

// state is everything the engine rolls back on a failed scope.
type state struct {
	stats     domain.PoolStats
	paused    bool
	cooldown  time.Duration
	minConf   uint8
	positions *ledger.Positions
	orders    *ledger.Orders
	pending   []domain.Event // eventos a publicar en el próximo commit
}

func (s *state) clone() *state {
	c := *s
	c.positions = s.positions.Clone()
	c.orders = s.orders.Clone()
	c.pending = append([]domain.Event(nil), s.pending...)
	return &c
}

// Engine implements ports.Hooks for its pool plus the user, analyzer and
// owner operations. It is not safe for concurrent use.
type Engine struct {
	key     domain.PoolKey
	poolID  domain.PoolID
	self    common.Address // cuenta de custodia (key.Hooks)
	owner   common.Address
	pool    ports.PoolManager
	signals *signals.Store
	txm     *txn.Manager
	clock   ports.Clock
	sink    ports.EventSink
	store   ports.StateStore
	metrics ports.MetricsRecorder
	cfg     Config

	st        *state
	executing bool // guard del pase de ejecución de órdenes
}

var _ ports.Hooks = (*Engine)(nil)

// New creates an engine for opts.Pool and registers it, together with the
// signal store, as a participant of opts.Txn.
func New(opts Options) (*Engine, error) {
	if opts.Pool == nil || opts.Signals == nil || opts.Txn == nil || opts.Clock == nil {
		return nil, fmt.Errorf("engine.New: pool, signals, txn and clock are required: %w", domain.ErrInvalidParameter)
	}
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.MaxOrdersPerSwap <= 0 {
		cfg.MaxOrdersPerSwap = def.MaxOrdersPerSwap
	}
	if cfg.MaxRebalanceChecks <= 0 {
		cfg.MaxRebalanceChecks = def.MaxRebalanceChecks
	}
	if cfg.FeeCeiling == 0 {
		cfg.FeeCeiling = def.FeeCeiling
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if err := validateCooldown(cfg.Cooldown); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	if err := validateMinConfidence(cfg.MinConfidence); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	key := opts.Pool.Key()
	e := &Engine{
		key:     key,
		poolID:  key.ID(),
		self:    key.Hooks,
		owner:   opts.Owner,
		pool:    opts.Pool,
		signals: opts.Signals,
		txm:     opts.Txn,
		clock:   opts.Clock,
		sink:    opts.Sink,
		store:   opts.Store,
		metrics: opts.Metrics,
		cfg:     cfg,
		st: &state{
			stats:     domain.PoolStats{CurrentFee: opts.Pool.Slot0().Fee, LastTick: opts.Pool.Slot0().Tick},
			cooldown:  cfg.Cooldown,
			minConf:   cfg.MinConfidence,
			positions: ledger.NewPositions(),
			orders:    ledger.NewOrders(),
		},
	}
	e.signals.SetReporter(e.self)
	e.txm.Register(e)
	e.txm.Register(e.signals)
	e.txm.OnCommit(e.flush)

	slog.Info("engine: ready",
		"pool", e.poolID.Hex(),
		"custody", e.self.Hex(),
		"cooldown", cfg.Cooldown,
		"min_confidence", cfg.MinConfidence,
		"fee", e.st.stats.CurrentFee,
	)
	return e, nil
}

// Snapshot implementa txn.Participant.
func (e *Engine) Snapshot() any { return e.st.clone() }

// Restore implementa txn.Participant.
func (e *Engine) Restore(snap any) { e.st = snap.(*state) }

// Key devuelve el PoolKey configurado.
func (e *Engine) Key() domain.PoolKey { return e.key }

// PoolID devuelve el identificador del pool.
func (e *Engine) PoolID() domain.PoolID { return e.poolID }

// Custody devuelve la cuenta que custodia escrow, claims y surplus.
func (e *Engine) Custody() common.Address { return e.self }

// Owner devuelve la identidad con permisos de administración.
func (e *Engine) Owner() common.Address { return e.owner }

func (e *Engine) emit(ev domain.Event) {
	ev.ID = uuid.NewString()
	ev.At = e.clock.Now()
	ev.PoolID = e.poolID
	e.st.pending = append(e.st.pending, ev)
}

// flush runs after the outermost scope commits: it hands the buffered events
// to the sink and the metrics and persists the resulting state. Failures here
// do not undo the operation.
func (e *Engine) flush() {
	events := e.st.pending
	e.st.pending = nil

	// Stats and signals change without events, so state is saved on every commit.
	ctx := context.Background()
	if e.sink != nil && len(events) > 0 {
		if err := e.sink.Publish(ctx, events); err != nil {
			slog.Warn("engine: publish events failed", "events", len(events), "err", err)
		}
	}
	if e.store == nil && e.metrics == nil {
		return
	}
	snap := e.ExportState()
	if e.metrics != nil {
		e.metrics.ObserveCommit(events, snap)
	}
	if e.store != nil {
		if err := e.store.SaveState(ctx, snap); err != nil {
			slog.Warn("engine: save state failed", "err", err)
		}
		if err := e.store.AppendEvents(ctx, events); err != nil {
			slog.Warn("engine: append events failed", "err", err)
		}
	}
}

// run executes fn as one atomic operation and wraps its error with op.
func (e *Engine) run(op string, fn func() error) error {
	if err := e.txm.Run(fn); err != nil {
		return fmt.Errorf("engine.%s: %w", op, err)
	}
	return nil
}

// poolSalt namespaces a position salt by owner so two depositors can use the
// same range and salt without sharing a pool position.
func poolSalt(owner common.Address, salt common.Hash) common.Hash {
	return crypto.Keccak256Hash(owner.Bytes(), salt.Bytes())
}

func defaultSalt(id domain.PositionID) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(uint64(id)))
}

func (e *Engine) isPoolCurrency(c common.Address) bool {
	return c == e.key.Currency0 || c == e.key.Currency1
}

func validateCooldown(d time.Duration) error {
	if d < 0 || (d > 0 && d < MinCooldown) {
		return fmt.Errorf("cooldown %s must be 0 or at least %s: %w", d, MinCooldown, domain.ErrInvalidParameter)
	}
	return nil
}

func validateMinConfidence(c uint8) error {
	if c < MinConfidenceFloor || c > domain.MaxConfidence {
		return fmt.Errorf("min confidence %d outside [%d, %d]: %w", c, MinConfidenceFloor, domain.MaxConfidence, domain.ErrInvalidParameter)
	}
	return nil
}
