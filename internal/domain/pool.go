package domain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Límites globales del espacio de ticks (mismos que un pool concentrado estándar).
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// MaxLPFee es el techo absoluto del fee en partes por millón.
	MaxLPFee uint32 = 1_000_000

	// DynamicFeeFlag marca un PoolKey cuyo fee lo controla el engine.
	DynamicFeeFlag uint32 = 0x800000
)

// PoolID identifica un pool; es el keccak del PoolKey.
type PoolID = common.Hash

// PoolKey describe de forma única un pool: par de monedas, fee, tick spacing y hook.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address // cuenta de custodia del engine
}

// ID devuelve el identificador del pool (keccak256 de los campos en words de 32 bytes).
func (k PoolKey) ID() PoolID {
	buf := make([]byte, 0, 5*32)
	buf = append(buf, common.LeftPadBytes(k.Currency0.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(k.Currency1.Bytes(), 32)...)
	buf = append(buf, word(uint64(k.Fee))...)
	buf = append(buf, word(uint64(uint32(k.TickSpacing)))...)
	buf = append(buf, common.LeftPadBytes(k.Hooks.Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// IsDynamicFee indica si el fee del pool puede cambiar en cada trade.
func (k PoolKey) IsDynamicFee() bool {
	return k.Fee&DynamicFeeFlag != 0
}

// Currencies devuelve (input, output) para la dirección dada.
func (k PoolKey) Currencies(zeroForOne bool) (in, out common.Address) {
	if zeroForOne {
		return k.Currency0, k.Currency1
	}
	return k.Currency1, k.Currency0
}

func word(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// AlignTick redondea un tick hacia abajo al múltiplo de spacing más cercano.
func AlignTick(tick, spacing int32) int32 {
	if spacing <= 1 {
		return tick
	}
	r := tick % spacing
	if r < 0 {
		r += spacing
	}
	return tick - r
}

// AlignTickUp redondea un tick hacia arriba al múltiplo de spacing.
func AlignTickUp(tick, spacing int32) int32 {
	down := AlignTick(tick, spacing)
	if down == tick {
		return tick
	}
	return down + spacing
}

// IsAligned indica si el tick es múltiplo del spacing.
func IsAligned(tick, spacing int32) bool {
	return spacing <= 1 || tick%spacing == 0
}

// InTickDomain indica si el tick está dentro del dominio global.
func InTickDomain(tick int32) bool {
	return tick >= MinTick && tick <= MaxTick
}

// ValidateRange comprueba alineación, orden y dominio de un rango.
func ValidateRange(lower, upper, spacing int32) error {
	if lower >= upper {
		return ErrInvalidTickRange
	}
	if !InTickDomain(lower) || !InTickDomain(upper) {
		return ErrInvalidTickRange
	}
	if !IsAligned(lower, spacing) || !IsAligned(upper, spacing) {
		return ErrInvalidTickRange
	}
	return nil
}
