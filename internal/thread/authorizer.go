package thread

import (
	"errors"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/auth"
)

type Action int

const (
	ActionJoin Action = iota
	ActionSend
)

var (
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidReceiver = errors.New("receiver is not a party to this thread")
)

// Authorize is the pure access decision: given a verified identity, a fresh
// snapshot and the intended action, it either yields the canonical channel
// key or denies. Receiver is only consulted for ActionSend.
//
// Rules per thread kind:
//   - quotation: the quoting seller or the requesting buyer
//   - rfq: the requesting buyer only
//   - product: the declared counterpart, the shop owner, or any requester
//     when the counterpart is the shop owner; an unresolved owner denies
//     everyone except the declared counterpart
func Authorize(identity auth.Identity, snapshot *Snapshot, action Action, receiver string) (string, error) {
	user := identity.UserID

	switch snapshot.Ref.Kind {
	case KindQuotation:
		if user != snapshot.QuotedBy && user != snapshot.RequestedBy {
			return "", ErrAccessDenied
		}
		if action == ActionSend && receiver != snapshot.QuotedBy && receiver != snapshot.RequestedBy {
			return "", ErrInvalidReceiver
		}
		return QuotationChannel(snapshot.Ref.ID), nil

	case KindRFQ:
		if user != snapshot.RequestedBy {
			return "", ErrAccessDenied
		}
		// the supplier side of an RFQ conversation is whoever the
		// requester addresses, so only self-addressing is rejected
		if action == ActionSend && (receiver == "" || receiver == user) {
			return "", ErrInvalidReceiver
		}
		return RFQChannel(snapshot.Ref.ID), nil

	case KindProduct:
		counterpart := snapshot.Ref.Counterpart
		owner := snapshot.ShopOwner

		allowed := user == counterpart ||
			(owner != "" && user == owner) ||
			(owner != "" && counterpart == owner)
		if !allowed {
			return "", ErrAccessDenied
		}
		if action == ActionSend {
			validReceiver := receiver == counterpart || (owner != "" && receiver == owner)
			if !validReceiver {
				return "", ErrInvalidReceiver
			}
		}
		return ProductChannel(snapshot.Ref.ID, user, counterpart), nil
	}

	return "", ErrAccessDenied
}
