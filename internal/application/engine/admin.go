package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Owner-only parameter changes. Each emits PARAMS_UPDATED with the parameter
// name in Reason.

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return domain.ErrUnauthorized
	}
	return nil
}

func (e *Engine) paramsUpdated(caller common.Address, reason string) {
	e.emit(domain.Event{Kind: domain.EventParamsUpdated, Account: caller, Reason: reason})
}

// SetSignalWriter cambia la identidad autorizada a publicar señales.
func (e *Engine) SetSignalWriter(ctx context.Context, caller, writer common.Address) error {
	return e.run("SetSignalWriter", func() error {
		if err := e.signals.SetWriter(caller, writer); err != nil {
			return err
		}
		e.paramsUpdated(caller, "signal_writer="+writer.Hex())
		return nil
	})
}

// SetSignalTTL cambia la ventana de vigencia de las señales.
func (e *Engine) SetSignalTTL(ctx context.Context, caller common.Address, ttl time.Duration) error {
	return e.run("SetSignalTTL", func() error {
		if err := e.signals.SetTTL(caller, ttl); err != nil {
			return err
		}
		e.paramsUpdated(caller, "signal_ttl="+ttl.String())
		return nil
	})
}

// SetCooldown sets the minimum time between two rebalances of a position.
// Zero disables it; otherwise it must be at least MinCooldown.
func (e *Engine) SetCooldown(ctx context.Context, caller common.Address, cooldown time.Duration) error {
	return e.run("SetCooldown", func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := validateCooldown(cooldown); err != nil {
			return err
		}
		e.st.cooldown = cooldown
		e.paramsUpdated(caller, "cooldown="+cooldown.String())
		return nil
	})
}

// SetMinConfidence sets the confidence a recommendation needs to be acted on.
func (e *Engine) SetMinConfidence(ctx context.Context, caller common.Address, confidence uint8) error {
	return e.run("SetMinConfidence", func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := validateMinConfidence(confidence); err != nil {
			return err
		}
		e.st.minConf = confidence
		e.paramsUpdated(caller, fmt.Sprintf("min_confidence=%d", confidence))
		return nil
	})
}

// Pause blocks new positions, orders and rebalances and skips the trade
// automation. Withdrawals, cancels and claims keep working.
func (e *Engine) Pause(ctx context.Context, caller common.Address) error {
	return e.setPaused(caller, true)
}

// Unpause reanuda la operación normal.
func (e *Engine) Unpause(ctx context.Context, caller common.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	return e.run("setPaused", func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if e.st.paused == paused {
			return nil
		}
		e.st.paused = paused
		e.paramsUpdated(caller, fmt.Sprintf("paused=%t", paused))
		return nil
	})
}

// ClearOldSignals compacts the pool's signal buffer. Anyone may call it.
func (e *Engine) ClearOldSignals(ctx context.Context) (int, error) {
	var removed int
	err := e.run("ClearOldSignals", func() error {
		removed = e.signals.ClearOldSignals(e.poolID)
		return nil
	})
	return removed, err
}
