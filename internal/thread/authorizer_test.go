package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/auth"
)

func ident(id string) auth.Identity {
	return auth.Identity{UserID: id, Role: "user"}
}

func TestAuthorizeQuotation(t *testing.T) {
	snapshot := &Snapshot{
		Ref:         QuotationRef("Q1"),
		QuotedBy:    "seller",
		RequestedBy: "buyer",
	}

	tests := []struct {
		name    string
		user    string
		wantErr error
	}{
		{"quoting seller allowed", "seller", nil},
		{"requesting buyer allowed", "buyer", nil},
		{"third party denied", "intruder", ErrAccessDenied},
		{"empty identity denied", "", ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, err := Authorize(ident(tt.user), snapshot, ActionJoin, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, channel)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "quotation-Q1", channel)
		})
	}
}

func TestAuthorizeQuotationSendReceiver(t *testing.T) {
	snapshot := &Snapshot{
		Ref:         QuotationRef("Q1"),
		QuotedBy:    "seller",
		RequestedBy: "buyer",
	}

	_, err := Authorize(ident("seller"), snapshot, ActionSend, "buyer")
	assert.NoError(t, err)

	_, err = Authorize(ident("seller"), snapshot, ActionSend, "outsider")
	assert.ErrorIs(t, err, ErrInvalidReceiver)
}

func TestAuthorizeRFQ(t *testing.T) {
	snapshot := &Snapshot{Ref: RFQRef("R1"), RequestedBy: "buyer"}

	channel, err := Authorize(ident("buyer"), snapshot, ActionJoin, "")
	assert.NoError(t, err)
	assert.Equal(t, "rfq-R1", channel)

	_, err = Authorize(ident("supplier"), snapshot, ActionJoin, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizeRFQSendReceiver(t *testing.T) {
	snapshot := &Snapshot{Ref: RFQRef("R1"), RequestedBy: "buyer"}

	channel, err := Authorize(ident("buyer"), snapshot, ActionSend, "supplier")
	assert.NoError(t, err)
	assert.Equal(t, "rfq-R1", channel)

	_, err = Authorize(ident("buyer"), snapshot, ActionSend, "")
	assert.ErrorIs(t, err, ErrInvalidReceiver)

	_, err = Authorize(ident("buyer"), snapshot, ActionSend, "buyer")
	assert.ErrorIs(t, err, ErrInvalidReceiver)
}

func TestAuthorizeProduct(t *testing.T) {
	tests := []struct {
		name        string
		user        string
		counterpart string
		owner       string
		wantErr     error
	}{
		{"declared counterpart allowed", "u2", "u2", "owner", nil},
		{"shop owner allowed", "owner", "u2", "owner", nil},
		{"requester allowed when counterpart is owner", "u1", "owner", "owner", nil},
		{"unrelated user denied", "u9", "u2", "owner", ErrAccessDenied},
		{"unresolved owner denies non-counterpart", "u1", "u2", "", ErrAccessDenied},
		{"unresolved owner still admits counterpart", "u2", "u2", "", nil},
		{"empty identity never matches empty owner", "", "u2", "", ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := &Snapshot{
				Ref:       ProductRef("P1", tt.counterpart),
				ShopOwner: tt.owner,
			}
			channel, err := Authorize(ident(tt.user), snapshot, ActionJoin, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, ProductChannel("P1", tt.user, tt.counterpart), channel)
		})
	}
}

// join-product-room from U1 where the product's shop owner is the declared
// receiver: allowed, channel key sorted over the pair.
func TestAuthorizeProductOwnerIsReceiver(t *testing.T) {
	snapshot := &Snapshot{
		Ref:       ProductRef("P1", "U2"),
		ShopOwner: "U2",
	}

	channel, err := Authorize(ident("U1"), snapshot, ActionJoin, "")
	assert.NoError(t, err)
	assert.Equal(t, "product-P1-U1-U2", channel)
}

func TestAuthorizeProductSendReceiver(t *testing.T) {
	snapshot := &Snapshot{
		Ref:       ProductRef("P1", "u2"),
		ShopOwner: "owner",
	}

	_, err := Authorize(ident("owner"), snapshot, ActionSend, "u2")
	assert.NoError(t, err)

	_, err = Authorize(ident("u2"), snapshot, ActionSend, "owner")
	assert.NoError(t, err)

	_, err = Authorize(ident("u2"), snapshot, ActionSend, "stranger")
	assert.ErrorIs(t, err, ErrInvalidReceiver)
}
