package resolve

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short stable digest of a normalized provider context,
// used for log correlation and recompute idempotency checks. New joiners hash
// to the same value regardless of which path produced them.
func Fingerprint(pc ProviderContext) string {
	if pc.NewJoiner {
		pc = NewJoinerContext()
	}
	b, err := json.Marshal(pc)
	if err != nil {
		return ""
	}
	h := blake3.New()
	_, _ = h.Write(b)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:6])
}
