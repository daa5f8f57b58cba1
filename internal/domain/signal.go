package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxConfidence es el techo de la escala de confianza.
const MaxConfidence uint8 = 100

// RebalanceSignal es una recomendación externa de nuevo rango para una posición.
type RebalanceSignal struct {
	PositionID PositionID
	TickLower  int32
	TickUpper  int32
	Confidence uint8
	Timestamp  time.Time
}

// FeeRecommendation es la recomendación de fee vigente para un pool.
type FeeRecommendation struct {
	Fee        uint32
	Confidence uint8
	Timestamp  time.Time
}

// ExecutionReport es lo que el engine publica al ejecutar una orden, para indexado off-chain.
type ExecutionReport struct {
	OrderID   OrderID
	Owner     common.Address
	Currency  common.Address
	AmountOut int64
	Timestamp time.Time
}
