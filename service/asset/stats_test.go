package asset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/model/entity"
	assetRepo "solarcycle.GO/model/repository/asset"
)

func TestTriageStats(t *testing.T) {
	f := newFixture(t)
	f.inspect(t, f.scan(t, "S-1").ID, 40, 5, "GOOD")
	f.inspect(t, f.scan(t, "S-2").ID, 40, 5, "BROKEN")
	f.inspect(t, f.scan(t, "S-3").ID, 40, 5, "SHATTERED")
	f.scan(t, "S-4")

	stats, err := f.reg.TriageStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "threshold", stats.Strategy)
	assert.Equal(t, uint64(3), stats.Evaluations)
	assert.Equal(t, []assetRepo.GroupCount{
		{Key: string(entity.TriageRecycle), Count: 2},
		{Key: string(entity.TriageReuse), Count: 1},
	}, stats.ByResult)

	total := int64(0)
	for _, c := range stats.ByStatus {
		total += c.Count
	}
	assert.Equal(t, int64(4), total)
}
