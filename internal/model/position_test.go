package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPositionJSONRoundTrip(t *testing.T) {
	original := Position{
		TokenID:        "42",
		PoolID:         "0xabcdef0000000000000000000000000000000000000000000000000000000000",
		Salt:           "0x000000000000000000000000000000000000000000000000000000000000002a",
		Sender:         "0x2222222222222222222222222222222222222222",
		Owner:          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		TickLower:      -600,
		TickUpper:      600,
		LiquidityDelta: "1000000",
		BlockNumber:    36000000,
		TxHash:         "0xdef4560000000000000000000000000000000000000000000000000000000000",
		Timestamp:      1700000000,
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Position
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestPositionLegacyFieldNames(t *testing.T) {
	payload := []byte(`{
		"token_id": "7",
		"pool_id": "0xABCD",
		"tick_lower": -100,
		"tick_upper": 100,
		"liquidity_delta": "555",
		"block_number": 1234,
		"tx_hash": "0xFFEE",
		"owner": "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	}`)

	var p Position
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if p.TokenID != "7" {
		t.Fatalf("token id mismatch: %q", p.TokenID)
	}
	if p.PoolID != "0xabcd" {
		t.Fatalf("pool id not normalized: %q", p.PoolID)
	}
	if p.TickLower != -100 || p.TickUpper != 100 {
		t.Fatalf("ticks mismatch: %d %d", p.TickLower, p.TickUpper)
	}
	if p.LiquidityDelta != "555" {
		t.Fatalf("liquidity delta mismatch: %q", p.LiquidityDelta)
	}
	if p.BlockNumber != 1234 {
		t.Fatalf("block number mismatch: %d", p.BlockNumber)
	}
	if p.Owner != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("owner not lower-cased: %q", p.Owner)
	}
}

func TestPositionNormalizeKeepsUnknown(t *testing.T) {
	p := Position{Owner: OwnerUnknown, Sender: "0xBBBB"}
	p.Normalize()
	if p.Owner != OwnerUnknown {
		t.Fatalf("owner sentinel mangled: %q", p.Owner)
	}
	if p.Sender != "0xbbbb" {
		t.Fatalf("sender not lower-cased: %q", p.Sender)
	}
}

func TestHasOwner(t *testing.T) {
	cases := []struct {
		owner string
		want  bool
	}{
		{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{OwnerUnknown, false},
		{ZeroAddress, false},
		{"", false},
	}
	for _, tc := range cases {
		p := Position{Owner: tc.owner}
		if p.HasOwner() != tc.want {
			t.Fatalf("HasOwner(%q) != %v", tc.owner, tc.want)
		}
	}
}
