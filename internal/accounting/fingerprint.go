package accounting

import (
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies the content of a settle request so a replayed
// idempotency key can be told apart from a reused one.
func Fingerprint(groupID, payer, payee string, amount decimal.Decimal) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{
		groupID, payer, payee, amount.StringFixed(2),
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}
