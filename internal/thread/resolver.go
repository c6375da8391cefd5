package thread

import (
	"context"
	"time"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// Directory is the slice of the shared database the resolver reads from.
type Directory interface {
	QuotationByID(ctx context.Context, id string) (*database.QuotationDoc, error)
	RFQByID(ctx context.Context, id string) (*database.RFQDoc, error)
	ProductByID(ctx context.Context, id string) (*database.ProductDoc, error)
	ShopByID(ctx context.Context, id string) (*database.ShopDoc, error)
}

// Resolver turns a Reference into a fresh Snapshot. All lookups for one
// resolve share a single time budget.
type Resolver struct {
	dir     Directory
	timeout time.Duration
}

func NewResolver(dir Directory, timeout time.Duration) *Resolver {
	return &Resolver{dir: dir, timeout: timeout}
}

func (r *Resolver) Resolve(ctx context.Context, ref Reference) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch ref.Kind {
	case KindQuotation:
		quotation, err := r.dir.QuotationByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		rfq, err := r.dir.RFQByID(ctx, quotation.RFQ)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Ref: ref, QuotedBy: quotation.QuotedBy, RequestedBy: rfq.RequestedBy}, nil

	case KindRFQ:
		rfq, err := r.dir.RFQByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Ref: ref, RequestedBy: rfq.RequestedBy}, nil

	case KindProduct:
		product, err := r.dir.ProductByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		snapshot := &Snapshot{Ref: ref}
		// the shop is a secondary lookup; failing it leaves the owner
		// unresolved rather than failing the resolve, the authorizer
		// treats an empty owner as insufficient information
		shop, err := r.dir.ShopByID(ctx, product.Shop)
		if err != nil {
			logger.DebugF("Shop %s for product %s not resolved: %v", product.Shop, ref.ID, err)
		} else {
			snapshot.ShopOwner = shop.Owner
		}
		return snapshot, nil
	}

	return nil, database.ErrNotFound
}
