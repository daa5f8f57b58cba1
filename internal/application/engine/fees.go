package engine

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
)

// applyFeeRecommendation moves the active fee to the live recommendation when
// it is confident enough and differs from the active fee by more than 10%.
// A qualifying recommendation above the ceiling fails with ErrFeeTooHigh.
func (e *Engine) applyFeeRecommendation() error {
	fee, confidence := e.signals.DynamicFee(e.poolID)
	if confidence < e.st.minConf {
		return nil
	}
	old := e.st.stats.CurrentFee
	diff := int64(fee) - int64(old)
	if diff < 0 {
		diff = -diff
	}
	if diff*10 <= int64(old) {
		return nil
	}
	if fee > e.cfg.FeeCeiling {
		return fmt.Errorf("fee %d above ceiling %d: %w", fee, e.cfg.FeeCeiling, domain.ErrFeeTooHigh)
	}
	if err := e.pool.UpdateDynamicFee(fee); err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	e.st.stats.CurrentFee = fee
	e.emit(domain.Event{
		Kind:   domain.EventFeeUpdated,
		OldFee: old,
		NewFee: fee,
	})
	slog.Info("engine: fee updated", "old", old, "new", fee, "confidence", confidence)
	return nil
}
