package stock

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/api/apitest"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/material"
)

func TestStock_PublicAndSeeded(t *testing.T) {
	s := apitest.New(t)

	rec := s.DoAnonymous(t, http.MethodGet, "/api/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Materials []entity.MaterialStock `json:"materials"`
	}
	apitest.Decode(t, rec, &body)
	require.Len(t, body.Materials, 4)
	for _, m := range body.Materials {
		assert.True(t, m.TotalKg.IsZero())
	}
}

func TestRecycleRecords(t *testing.T) {
	s := apitest.New(t)
	ctx := context.Background()
	a, _, err := s.App.Assets.ScanOrCreate(ctx, asset.ScanInput{QRCode: "QR-REC"})
	require.NoError(t, err)
	_, _, err = s.App.Assets.CompleteInspection(ctx, asset.CompleteInspectionInput{
		AssetID: a.ID, Voltage: 1, Amperage: 1, PhysicalCondition: "DELAMINATED",
	})
	require.NoError(t, err)
	weight := decimal.NewFromInt(10)
	_, err = s.App.Recovery.Recycle(ctx, material.RecycleInput{AssetID: a.ID, WeightKg: &weight})
	require.NoError(t, err)

	rec := s.DoAnonymous(t, http.MethodGet, "/api/recycle-records", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.Do(t, http.MethodGet, "/api/recycle-records?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Records []material.RecordView `json:"records"`
	}
	apitest.Decode(t, rec, &body)
	require.Len(t, body.Records, 1)
	assert.Equal(t, a.ID, body.Records[0].AssetID)
	assert.False(t, body.Records[0].ChainConfirmed)

	rec = s.Do(t, http.MethodGet, "/api/recycle-records?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.DoAnonymous(t, http.MethodGet, "/api/stock", nil)
	var stock struct {
		Materials []entity.MaterialStock `json:"materials"`
	}
	apitest.Decode(t, rec, &stock)
	assert.True(t, stock.Materials[0].AvailableKg.Equal(decimal.RequireFromString("3.5")))
}
