package model

import (
	"encoding/json"
	"strings"
)

// OwnerUnknown marks a position whose on-chain owner could not be resolved.
const OwnerUnknown = "Unknown"

// ZeroAddress is the lower-cased zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Position is the canonical record for a pool NFT position. TokenID is the
// unique key; addresses are stored lower-cased.
type Position struct {
	TokenID        string `json:"tokenId"`
	PoolID         string `json:"poolId"`
	Salt           string `json:"salt"`
	Sender         string `json:"sender"`
	Owner          string `json:"owner"`
	TickLower      int32  `json:"tickLower"`
	TickUpper      int32  `json:"tickUpper"`
	LiquidityDelta string `json:"liquidityDelta"`
	BlockNumber    uint64 `json:"blockNumber"`
	TxHash         string `json:"txHash"`
	Timestamp      uint64 `json:"timestamp"`
}

// positionWire accepts both the canonical field names and the legacy
// snake_case names found in older snapshots.
type positionWire struct {
	TokenID        string `json:"tokenId"`
	TokenIDLegacy  string `json:"token_id"`
	PoolID         string `json:"poolId"`
	PoolIDLegacy   string `json:"pool_id"`
	Salt           string `json:"salt"`
	Sender         string `json:"sender"`
	Owner          string `json:"owner"`
	TickLower      *int32 `json:"tickLower"`
	TickLowerOld   *int32 `json:"tick_lower"`
	TickUpper      *int32 `json:"tickUpper"`
	TickUpperOld   *int32 `json:"tick_upper"`
	Liquidity      string `json:"liquidityDelta"`
	LiquidityOld   string `json:"liquidity_delta"`
	BlockNumber    uint64 `json:"blockNumber"`
	BlockNumberOld uint64 `json:"block_number"`
	TxHash         string `json:"txHash"`
	TxHashOld      string `json:"tx_hash"`
	Timestamp      uint64 `json:"timestamp"`
}

// UnmarshalJSON decodes a Position, normalizing legacy snake_case fields.
func (p *Position) UnmarshalJSON(data []byte) error {
	var w positionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Position{
		TokenID:        firstNonEmpty(w.TokenID, w.TokenIDLegacy),
		PoolID:         firstNonEmpty(w.PoolID, w.PoolIDLegacy),
		Salt:           w.Salt,
		Sender:         w.Sender,
		Owner:          w.Owner,
		LiquidityDelta: firstNonEmpty(w.Liquidity, w.LiquidityOld),
		BlockNumber:    w.BlockNumber,
		TxHash:         firstNonEmpty(w.TxHash, w.TxHashOld),
		Timestamp:      w.Timestamp,
	}
	if w.BlockNumber == 0 {
		p.BlockNumber = w.BlockNumberOld
	}
	if w.TickLower != nil {
		p.TickLower = *w.TickLower
	} else if w.TickLowerOld != nil {
		p.TickLower = *w.TickLowerOld
	}
	if w.TickUpper != nil {
		p.TickUpper = *w.TickUpper
	} else if w.TickUpperOld != nil {
		p.TickUpper = *w.TickUpperOld
	}

	p.Normalize()
	return nil
}

// Normalize lower-cases the address-valued fields in place. The owner
// sentinel OwnerUnknown is preserved as-is.
func (p *Position) Normalize() {
	p.Sender = strings.ToLower(p.Sender)
	if p.Owner != OwnerUnknown {
		p.Owner = strings.ToLower(p.Owner)
	}
	p.PoolID = strings.ToLower(p.PoolID)
	p.TxHash = strings.ToLower(p.TxHash)
}

// HasOwner reports whether the position resolved to a real (non-zero) owner.
func (p Position) HasOwner() bool {
	return p.Owner != "" && p.Owner != OwnerUnknown && p.Owner != ZeroAddress
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
