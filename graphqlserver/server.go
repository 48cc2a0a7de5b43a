package graphqlserver

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"solarcycle.GO/core/app"
	"solarcycle.GO/core/errno"
	"solarcycle.GO/graphql"
	"solarcycle.GO/graphql/registry"
	"solarcycle.GO/model/entity"
	assetRepo "solarcycle.GO/model/repository/asset"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
)

// RootResolver is the root for graphql-go. Every field is read-only.
type RootResolver struct {
	App *app.App
}

func (r *RootResolver) assets() *asset.Registry {
	return r.App.Assets
}

type AssetArgs struct {
	ID         *gql.ID
	Identifier *string
}

func (r *RootResolver) Asset(ctx context.Context, args AssetArgs) (*AssetResolver, error) {
	var (
		a   *entity.Asset
		err error
	)
	switch {
	case args.ID != nil:
		id, perr := parseID(*args.ID)
		if perr != nil {
			return nil, perr
		}
		a, err = r.assets().Get(ctx, id)
	case args.Identifier != nil && *args.Identifier != "":
		a, err = r.assets().FindByIdentifier(ctx, *args.Identifier)
	default:
		return nil, errno.ErrMissingID
	}
	if errors.Is(err, errno.ErrAssetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &AssetResolver{a: a}, nil
}

type HistoryArgs struct {
	ID gql.ID
}

func (r *RootResolver) AssetHistory(ctx context.Context, args HistoryArgs) (*HistoryResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	report, err := r.assets().History(ctx, id)
	if errors.Is(err, errno.ErrAssetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &HistoryResolver{r: report}, nil
}

func (r *RootResolver) MaterialStock(ctx context.Context) ([]*StockResolver, error) {
	rows, err := r.App.Recovery.Stock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*StockResolver, len(rows))
	for i := range rows {
		out[i] = &StockResolver{s: rows[i]}
	}
	return out, nil
}

func (r *RootResolver) TriageStats(ctx context.Context) (*TriageStatsResolver, error) {
	stats, err := r.assets().TriageStats(ctx)
	if err != nil {
		return nil, err
	}
	return &TriageStatsResolver{s: stats}, nil
}

// ExtensionArgs for _extension(name, args).
type ExtensionArgs struct {
	Name string
	Args *string
}

func (r *RootResolver) Extension(ctx context.Context, args ExtensionArgs) (*string, error) {
	var m map[string]interface{}
	if args.Args != nil && *args.Args != "" {
		if err := json.Unmarshal([]byte(*args.Args), &m); err != nil {
			return nil, errno.ErrValidation.Wrap(err)
		}
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	out, err := registry.Resolve(graphql.WithApp(ctx, r.App), args.Name, m)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func parseID(id gql.ID) (uint, error) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || n == 0 {
		return 0, errno.ErrValidation.With("invalid id %q", id)
	}
	return uint(n), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type AssetResolver struct {
	a *entity.Asset
}

func (r *AssetResolver) ID() gql.ID           { return gql.ID(strconv.FormatUint(uint64(r.a.ID), 10)) }
func (r *AssetResolver) NfcTagID() *string    { return r.a.NfcTagID }
func (r *AssetResolver) QrCode() *string      { return r.a.QRCode }
func (r *AssetResolver) Status() string       { return string(r.a.Status) }
func (r *AssetResolver) Brand() *string       { return optional(r.a.Brand) }
func (r *AssetResolver) Model() *string       { return optional(r.a.Model) }
func (r *AssetResolver) Location() *string    { return optional(r.a.Location) }
func (r *AssetResolver) TokenID() *string     { return r.a.TokenID }
func (r *AssetResolver) BuyerWallet() *string { return r.a.BuyerWallet }
func (r *AssetResolver) CreatedAt() string    { return timestamp(r.a.CreatedAt) }
func (r *AssetResolver) UpdatedAt() string    { return timestamp(r.a.UpdatedAt) }

func (r *AssetResolver) WeightKg() *string {
	if !r.a.WeightKg.Valid {
		return nil
	}
	s := r.a.WeightKg.Decimal.String()
	return &s
}

func (r *AssetResolver) TriageResult() *string {
	if r.a.Inspection == nil {
		return nil
	}
	return optional(string(r.a.Inspection.TriageResult))
}

type HistoryResolver struct {
	r *asset.HistoryReport
}

func (h *HistoryResolver) Asset() *AssetResolver { return &AssetResolver{a: h.r.Asset} }
func (h *HistoryResolver) LedgerError() *string  { return optional(h.r.LedgerError) }
func (h *HistoryResolver) InSync() bool          { return h.r.InSync }

func (h *HistoryResolver) Ledger() []*LedgerEntryResolver {
	out := make([]*LedgerEntryResolver, len(h.r.Ledger))
	for i := range h.r.Ledger {
		out[i] = &LedgerEntryResolver{e: h.r.Ledger[i]}
	}
	return out
}

func (h *HistoryResolver) Mirrors() []*MirrorResolver {
	out := make([]*MirrorResolver, len(h.r.Mirrors))
	for i := range h.r.Mirrors {
		out[i] = &MirrorResolver{m: h.r.Mirrors[i]}
	}
	return out
}

type LedgerEntryResolver struct {
	e ledger.HistoryEntry
}

func (r *LedgerEntryResolver) Status() string    { return r.e.Status.String() }
func (r *LedgerEntryResolver) Location() string  { return r.e.Location }
func (r *LedgerEntryResolver) Note() string      { return r.e.Note }
func (r *LedgerEntryResolver) Actor() string     { return r.e.Actor }
func (r *LedgerEntryResolver) Timestamp() string { return timestamp(r.e.Timestamp) }

type MirrorResolver struct {
	m entity.LedgerOutbox
}

func (r *MirrorResolver) ID() gql.ID         { return gql.ID(strconv.FormatUint(uint64(r.m.ID), 10)) }
func (r *MirrorResolver) Kind() string       { return string(r.m.Kind) }
func (r *MirrorResolver) Status() string     { return string(r.m.Status) }
func (r *MirrorResolver) Attempts() int32    { return int32(r.m.Attempts) }
func (r *MirrorResolver) TxHash() *string    { return r.m.TxHash }
func (r *MirrorResolver) LastError() *string { return optional(r.m.LastError) }

type StockResolver struct {
	s entity.MaterialStock
}

func (r *StockResolver) Material() string    { return string(r.s.Material) }
func (r *StockResolver) TotalKg() string     { return r.s.TotalKg.String() }
func (r *StockResolver) AvailableKg() string { return r.s.AvailableKg.String() }
func (r *StockResolver) ReservedKg() string  { return r.s.ReservedKg.String() }

type TriageStatsResolver struct {
	s *asset.TriageStats
}

func (r *TriageStatsResolver) Strategy() string   { return r.s.Strategy }
func (r *TriageStatsResolver) Evaluations() int32 { return int32(r.s.Evaluations) }
func (r *TriageStatsResolver) ByResult() []*GroupCountResolver {
	return groupCounts(r.s.ByResult)
}
func (r *TriageStatsResolver) ByStatus() []*GroupCountResolver {
	return groupCounts(r.s.ByStatus)
}

type GroupCountResolver struct {
	c assetRepo.GroupCount
}

func (r *GroupCountResolver) Key() string  { return r.c.Key }
func (r *GroupCountResolver) Count() int32 { return int32(r.c.Count) }

func groupCounts(in []assetRepo.GroupCount) []*GroupCountResolver {
	out := make([]*GroupCountResolver, len(in))
	for i := range in {
		out[i] = &GroupCountResolver{c: in[i]}
	}
	return out
}

// NewSchema parses the schema and returns a graphql-go Schema.
func NewSchema(a *app.App) (*gql.Schema, error) {
	return gql.ParseSchema(graphql.Schema(), &RootResolver{App: a})
}

// Handler returns an http.Handler for GraphQL (relay format).
func Handler(schema *gql.Schema) *relay.Handler {
	return &relay.Handler{Schema: schema}
}
