package scan

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// EventSelector returns the topics[0] value for an event signature: the
// keccak256 hash of its canonical form, 0x-prefixed. The signature must
// already be canonical (no spaces, no argument names).
func EventSelector(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
