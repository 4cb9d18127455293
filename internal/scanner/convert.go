package scanner

import (
	"fmt"
	"math/big"
)

var (
	int24Max = big.NewInt(1<<23 - 1)
	int24Min = big.NewInt(-(1 << 23))
)

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return v, nil
	case big.Int:
		return &v, nil
	default:
		return nil, fmt.Errorf("unsupported big int type %T", value)
	}
}

func asBytes32(value interface{}) ([32]byte, error) {
	switch v := value.(type) {
	case [32]byte:
		return v, nil
	case []byte:
		var out [32]byte
		if len(v) != 32 {
			return out, fmt.Errorf("expected 32 bytes, got %d", len(v))
		}
		copy(out[:], v)
		return out, nil
	default:
		return [32]byte{}, fmt.Errorf("unsupported bytes32 type %T", value)
	}
}

func int24FromValue(value interface{}) (int32, error) {
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if n.Cmp(int24Min) < 0 || n.Cmp(int24Max) > 0 {
		return 0, fmt.Errorf("value out of int24 range: %s", n)
	}
	return int32(n.Int64()), nil
}
