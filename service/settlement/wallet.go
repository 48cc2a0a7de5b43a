package settlement

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"solarcycle.GO/core/errno"
)

// ValidWallet accepts 0x followed by 40 hex digits.
func ValidWallet(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

func checkWallet(s string) error {
	if !ValidWallet(s) {
		return errno.ErrInvalidWallet.With("%q", s)
	}
	return nil
}
