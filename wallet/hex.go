package wallet

import "encoding/hex"

func decodeHexInto(dst []byte, s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return hex.ErrLength
	}
	copy(dst, raw)
	return nil
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}
