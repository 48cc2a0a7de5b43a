package custom

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/api/apitest"
	gqlregistry "solarcycle.GO/graphql/registry"
	"solarcycle.GO/service/asset"
)

func TestWalletCheck(t *testing.T) {
	out, err := gqlregistry.Resolve(context.Background(), "walletCheck",
		map[string]interface{}{"wallet": "0x1111111111111111111111111111111111111111"})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["valid"])

	out, err = gqlregistry.Resolve(context.Background(), "walletCheck", map[string]interface{}{"wallet": "nope"})
	require.NoError(t, err)
	assert.Equal(t, false, out.(map[string]interface{})["valid"])
}

func TestLedgerStatusRoute(t *testing.T) {
	s := apitest.New(t)
	_, _, err := s.App.Assets.ScanOrCreate(context.Background(), asset.ScanInput{NfcTagID: "CUSTOM-1"})
	require.NoError(t, err)

	rec := s.DoAnonymous(t, http.MethodGet, "/ledger/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Enabled bool   `json:"enabled"`
		Signer  string `json:"signer"`
		Pending int64  `json:"pending"`
	}
	apitest.Decode(t, rec, &body)
	assert.True(t, body.Enabled)
	assert.EqualValues(t, 1, body.Pending)
}

func TestTriageReport(t *testing.T) {
	s := apitest.New(t)
	assert.NoError(t, TriageReport(context.Background(), s.App))
}
