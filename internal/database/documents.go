package database

import "time"

const (
	UserCollectionName      = "users"
	RFQCollectionName       = "rfqs"
	QuotationCollectionName = "quotations"
	ProductCollectionName   = "products"
	ShopCollectionName      = "shops"
	MessageCollectionName   = "messages"
)

// Identity, quotation, RFQ, product and shop documents are owned by the primary
// backend; the gateway only ever reads them, and only the fields it needs.

type UserDoc struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Email  string `bson:"email"`
	Avatar string `bson:"avatar,omitempty"`
	Role   string `bson:"role"`
}

type RFQDoc struct {
	ID          string `bson:"_id"`
	RequestedBy string `bson:"requestedBy"`
	Title       string `bson:"title,omitempty"`
}

type QuotationDoc struct {
	ID       string `bson:"_id"`
	RFQ      string `bson:"rfq"`
	QuotedBy string `bson:"quotedBy"`
}

type ProductDoc struct {
	ID   string `bson:"_id"`
	Shop string `bson:"shop"`
	Name string `bson:"name,omitempty"`
}

type ShopDoc struct {
	ID    string `bson:"_id"`
	Owner string `bson:"owner"`
}

// UserProjection is the minimal sender view attached to a persisted message.
type UserProjection struct {
	ID     string `bson:"_id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email" json:"email"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
}

// MessageDoc is the persisted chat message. Exactly one of Quotation, RFQ and
// Product is set; Validate on the draft enforces that before any write.
type MessageDoc struct {
	ID          string          `bson:"_id" json:"id"`
	Quotation   string          `bson:"quotation,omitempty" json:"quotationId,omitempty"`
	RFQ         string          `bson:"rfq,omitempty" json:"rfqId,omitempty"`
	Product     string          `bson:"product,omitempty" json:"productId,omitempty"`
	Sender      string          `bson:"sender" json:"sender"`
	Receiver    string          `bson:"receiver" json:"receiver"`
	Body        string          `bson:"body" json:"message"`
	Attachments []Attachment    `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	ReadAt      *time.Time      `bson:"readAt,omitempty" json:"readAt,omitempty"`
	SenderInfo  *UserProjection `bson:"-" json:"senderInfo,omitempty"`
}
