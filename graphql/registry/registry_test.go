package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walletPrefix stands in for an extension that inspects its arguments.
func walletPrefix(_ context.Context, args map[string]interface{}) (interface{}, error) {
	wallet, _ := args["wallet"].(string)
	if wallet == "" {
		return nil, errors.New("wallet is required")
	}
	return map[string]interface{}{
		"wallet": wallet,
		"hex":    strings.HasPrefix(wallet, "0x"),
	}, nil
}

func TestRegister_ResolvePassesArgs(t *testing.T) {
	defer Unregister("testWalletPrefix")
	Register("testWalletPrefix", walletPrefix)

	got, err := Resolve(context.Background(), "testWalletPrefix", map[string]interface{}{
		"wallet": "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"wallet": "0x1111111111111111111111111111111111111111",
		"hex":    true,
	}, got)

	_, err = Resolve(context.Background(), "testWalletPrefix", map[string]interface{}{})
	assert.EqualError(t, err, "wallet is required")
}

func TestResolve_UnknownListsAvailable(t *testing.T) {
	defer Unregister("testBacklog")
	Register("testBacklog", func(context.Context, map[string]interface{}) (interface{}, error) {
		return map[string]int64{"PENDING": 0}, nil
	})

	_, err := Resolve(context.Background(), "ledgerBacklogg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ledgerBacklogg"`)
	assert.Contains(t, err.Error(), "testBacklog")
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer Unregister("testDuplicate")
	Register("testDuplicate", walletPrefix)
	assert.Panics(t, func() { Register("testDuplicate", walletPrefix) })
}

func TestNames_Sorted(t *testing.T) {
	defer Unregister("testZeta")
	defer Unregister("testAlpha")
	Register("testZeta", walletPrefix)
	Register("testAlpha", walletPrefix)

	names := Names()
	assert.Contains(t, names, "testAlpha")
	assert.Contains(t, names, "testZeta")
	assert.IsNonDecreasing(t, names)
}
