package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductChannelSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"buyer-9", "shop-owner-3"},
		{"0001", "zzzz"},
		{"a", "b"},
	}

	for _, pair := range pairs {
		forward := ProductChannel("p1", pair[0], pair[1])
		backward := ProductChannel("p1", pair[1], pair[0])
		assert.Equal(t, forward, backward, "key must not depend on who initiates")
	}
}

func TestProductChannelComposition(t *testing.T) {
	assert.Equal(t, "product-P1-U1-U2", ProductChannel("P1", "U2", "U1"))
	assert.Equal(t, "product-P1-U1-U2", ProductChannel("P1", "U1", "U2"))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "quotation-q1", QuotationChannel("q1"))
	assert.Equal(t, "rfq-r1", RFQChannel("r1"))
	assert.Equal(t, "user-u1", UserChannel("u1"))
}

func TestReferenceConstructors(t *testing.T) {
	q := QuotationRef("q1")
	assert.Equal(t, KindQuotation, q.Kind)
	assert.Equal(t, "q1", q.ID)
	assert.Empty(t, q.Counterpart)

	r := RFQRef("r1")
	assert.Equal(t, KindRFQ, r.Kind)

	p := ProductRef("p1", "u2")
	assert.Equal(t, KindProduct, p.Kind)
	assert.Equal(t, "u2", p.Counterpart)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "quotation", KindQuotation.String())
	assert.Equal(t, "rfq", KindRFQ.String())
	assert.Equal(t, "product", KindProduct.String())
}
