package material

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"solarcycle.GO/model/entity"
)

// DefaultPanelWeightKg is used when neither the request nor the asset carries a weight.
var DefaultPanelWeightKg = decimal.NewFromInt(20)

// Fractions of a panel's weight recovered per material. They sum to 1.
var Fractions = map[entity.MaterialType]decimal.Decimal{
	entity.MaterialAluminum: decimal.RequireFromString("0.35"),
	entity.MaterialGlass:    decimal.RequireFromString("0.40"),
	entity.MaterialSilicon:  decimal.RequireFromString("0.15"),
	entity.MaterialCopper:   decimal.RequireFromString("0.10"),
}

// Decompose splits weight by Fractions. Decimal products are exact, so the
// parts always add up to weight.
func Decompose(weight decimal.Decimal) map[entity.MaterialType]decimal.Decimal {
	out := make(map[entity.MaterialType]decimal.Decimal, len(Fractions))
	for m, f := range Fractions {
		out[m] = weight.Mul(f)
	}
	return out
}

// TokenAmounts converts kg into whole material tokens at tokensPerKg, rounding down.
func TokenAmounts(parts map[entity.MaterialType]decimal.Decimal, tokensPerKg int64) map[entity.MaterialType]*big.Int {
	rate := decimal.NewFromInt(tokensPerKg)
	out := make(map[entity.MaterialType]*big.Int, len(parts))
	for m, kg := range parts {
		n := kg.Mul(rate).Floor().BigInt()
		if n.Sign() > 0 {
			out[m] = n
		}
	}
	return out
}

type fingerprintDoc struct {
	AssetID    uint              `json:"assetId"`
	OperatorID *uint             `json:"operatorId"`
	WeightKg   string            `json:"weightKg"`
	Materials  map[string]string `json:"materials"`
	Timestamp  string            `json:"timestamp"`
}

// Fingerprint is Keccak-256 over the canonical JSON of the recycling event.
// encoding/json sorts map keys, which keeps the encoding stable.
func Fingerprint(assetID uint, operatorID *uint, weight decimal.Decimal, parts map[entity.MaterialType]decimal.Decimal, at time.Time) string {
	doc := fingerprintDoc{
		AssetID:    assetID,
		OperatorID: operatorID,
		WeightKg:   weight.String(),
		Materials:  make(map[string]string, len(parts)),
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
	}
	for m, kg := range parts {
		doc.Materials[string(m)] = kg.String()
	}
	raw, _ := json.Marshal(doc)
	return crypto.Keccak256Hash(raw).Hex()
}
