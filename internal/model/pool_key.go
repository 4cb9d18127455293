package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey identifies the target pool. Address equality is case-insensitive
// because the fields are normalized to common.Address at construction.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// ParsePoolKey validates and normalizes string-form pool key components.
func ParsePoolKey(currency0, currency1 string, fee uint32, tickSpacing int32, hooks string) (PoolKey, error) {
	for name, addr := range map[string]string{
		"currency0": currency0,
		"currency1": currency1,
		"hooks":     hooks,
	} {
		if !common.IsHexAddress(addr) {
			return PoolKey{}, fmt.Errorf("invalid %s address: %s", name, addr)
		}
	}
	return PoolKey{
		Currency0:   common.HexToAddress(currency0),
		Currency1:   common.HexToAddress(currency1),
		Fee:         fee,
		TickSpacing: tickSpacing,
		Hooks:       common.HexToAddress(hooks),
	}, nil
}

// Equal compares two pool keys. common.Address is canonical, so address
// comparison is case-insensitive by construction.
func (k PoolKey) Equal(other PoolKey) bool {
	return k.Currency0 == other.Currency0 &&
		k.Currency1 == other.Currency1 &&
		k.Fee == other.Fee &&
		k.TickSpacing == other.TickSpacing &&
		k.Hooks == other.Hooks
}

// ID returns keccak256 of the ABI encoding of the key: five static words of
// (currency0, currency1, fee, tickSpacing, hooks).
func (k PoolKey) ID() common.Hash {
	encoded := make([]byte, 0, 5*32)
	encoded = append(encoded, common.LeftPadBytes(k.Currency0.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(k.Currency1.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(new(big.Int).SetUint64(uint64(k.Fee)).Bytes(), 32)...)
	encoded = append(encoded, math.U256Bytes(big.NewInt(int64(k.TickSpacing)))...)
	encoded = append(encoded, common.LeftPadBytes(k.Hooks.Bytes(), 32)...)
	return crypto.Keccak256Hash(encoded)
}

// HexID returns the lower-cased hex pool id.
func (k PoolKey) HexID() string {
	return strings.ToLower(k.ID().Hex())
}
