// Package thread models the commercial conversation a message belongs to:
// a quotation, an RFQ, or a direct product inquiry between a user and a shop.
package thread

import "fmt"

type Kind int

const (
	KindQuotation Kind = iota
	KindRFQ
	KindProduct
)

func (k Kind) String() string {
	switch k {
	case KindQuotation:
		return "quotation"
	case KindRFQ:
		return "rfq"
	case KindProduct:
		return "product"
	}
	return "unknown"
}

// Reference identifies a thread. It is a closed union: Kind selects which
// fields are meaningful. Counterpart is only set for product threads, where
// the thread is defined by the product and the declared other party.
type Reference struct {
	Kind        Kind
	ID          string
	Counterpart string
}

func QuotationRef(id string) Reference {
	return Reference{Kind: KindQuotation, ID: id}
}

func RFQRef(id string) Reference {
	return Reference{Kind: KindRFQ, ID: id}
}

func ProductRef(id, counterpart string) Reference {
	return Reference{Kind: KindProduct, ID: id, Counterpart: counterpart}
}

// Snapshot is the read-only view of a resolved thread, holding just the
// fields authorization needs. It is fetched fresh per operation and never
// cached, ownership can change between requests.
type Snapshot struct {
	Ref         Reference
	QuotedBy    string
	RequestedBy string
	ShopOwner   string // empty when the shop could not be resolved
}

func QuotationChannel(quotationID string) string {
	return "quotation-" + quotationID
}

func RFQChannel(rfqID string) string {
	return "rfq-" + rfqID
}

// ProductChannel composes the key from the sorted participant pair, so both
// participants independently compute the identical key regardless of who
// initiates.
func ProductChannel(productID, a, b string) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("product-%s-%s-%s", productID, lo, hi)
}

// UserChannel is the private per-identity notification channel.
func UserChannel(userID string) string {
	return "user-" + userID
}
