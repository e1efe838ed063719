package contract

import "fmt"

var (
	// PrefixTest is the namespace the flag lives in.
	PrefixTest = []byte("test")
	// TestKey is the only key the contract touches.
	TestKey = []byte("test_key")
)

// encodeBool uses a single byte: 0x01 for true, 0x00 for false.
func encodeBool(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

func decodeBool(raw []byte) (bool, error) {
	if len(raw) != 1 {
		return false, fmt.Errorf("bool needs 1 byte, got %d", len(raw))
	}
	switch raw[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool byte 0x%02x", raw[0])
	}
}
