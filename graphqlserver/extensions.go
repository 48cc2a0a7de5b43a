package graphqlserver

import (
	"context"
	"fmt"

	"solarcycle.GO/graphql"
	"solarcycle.GO/graphql/registry"
	"solarcycle.GO/model/entity"
	outboxRepo "solarcycle.GO/model/repository/outbox"
)

func init() {
	registry.Register("ledgerBacklog", ledgerBacklog)
}

// ledgerBacklog reports outbox rows per delivery status and whether the
// ledger client is live.
func ledgerBacklog(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	a := graphql.AppFromContext(ctx)
	if a == nil {
		return nil, fmt.Errorf("ledgerBacklog: no app in context")
	}
	repo := outboxRepo.NewOutboxRepository(a.DB.WithContext(ctx))
	out := map[string]interface{}{"enabled": a.Ledger.Enabled()}
	for _, s := range []entity.OutboxStatus{entity.OutboxPending, entity.OutboxSending, entity.OutboxSent, entity.OutboxFailed} {
		n, err := repo.Count(s)
		if err != nil {
			return nil, err
		}
		out[string(s)] = n
	}
	return out, nil
}
