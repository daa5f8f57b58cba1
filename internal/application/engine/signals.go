package engine

import (
	"context"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PostRebalanceSignal publica una señal para este pool como operación atómica,
// de modo que queda persistida con el resto del estado.
func (e *Engine) PostRebalanceSignal(ctx context.Context, caller common.Address, sig domain.RebalanceSignal) error {
	return e.run("PostRebalanceSignal", func() error {
		return e.signals.PostRebalanceSignal(caller, e.poolID, sig)
	})
}

// PostFeeRecommendation sobrescribe el slot de fee de este pool.
func (e *Engine) PostFeeRecommendation(ctx context.Context, caller common.Address, rec domain.FeeRecommendation) error {
	return e.run("PostFeeRecommendation", func() error {
		return e.signals.PostFeeRecommendation(caller, e.poolID, rec)
	})
}
