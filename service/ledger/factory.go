package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"solarcycle.GO/config"
	"solarcycle.GO/core/logger"
)

// NewClient picks the client named by cfg.Driver. An evm driver without
// credentials, or one that cannot connect, degrades to NoopClient so the
// process keeps running with ledger mirroring paused.
func NewClient(ctx context.Context, cfg config.Ledger) Client {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return NewMemoryClient()
	case "evm":
		if cfg.RPCURL == "" || cfg.PrivateKey == "" {
			logger.Warn("ledger: evm driver without credentials, mirroring disabled")
			return NoopClient{}
		}
		c, err := DialEVM(ctx, EVMConfig{
			RPCURL:              cfg.RPCURL,
			PrivateKey:          cfg.PrivateKey,
			TraceContract:       cfg.TraceContract,
			CollectibleContract: cfg.CollectibleContract,
			MaterialContract:    cfg.MaterialContract,
			TxTimeout:           cfg.TxTimeout,
		})
		if err != nil {
			logger.Error("ledger: evm client unavailable, mirroring disabled", zap.Error(err))
			return NoopClient{}
		}
		logger.Info("ledger: connected", zap.String("signer", c.Signer()))
		return c
	}
	return NoopClient{}
}
