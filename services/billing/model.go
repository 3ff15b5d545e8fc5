package billing

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

type EventStatus string

const (
	EventProcessed EventStatus = "processed"
	EventIgnored   EventStatus = "ignored"
	EventFailed    EventStatus = "failed"
)

// WebhookEvent records one provider delivery. The provider event ID is the primary key.
type WebhookEvent struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Type        string         `gorm:"column:type;type:varchar(100);not null;index" json:"type"`
	Status      EventStatus    `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	ObjectKey   string         `gorm:"column:object_key" json:"object_key,omitempty"`
	ProcessedAt *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "billing_webhook_events"
}

// Event is the provider envelope. Data.Object is decoded per event type.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type CheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

// TenantID prefers the metadata value set at checkout creation.
func (s CheckoutSession) TenantID() string {
	if id := s.Metadata["tenant_id"]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

// Seats reads metadata.seats. Missing or malformed values count as zero.
func (s CheckoutSession) Seats() int {
	n, err := strconv.Atoi(s.Metadata["seats"])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type Subscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Items    struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

type SubscriptionItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Active reports whether the subscription still entitles the tenant to its seats.
func (s Subscription) Active() bool {
	switch s.Status {
	case "canceled", "unpaid", "incomplete_expired":
		return false
	default:
		return true
	}
}

// SeatChange is one scope whose license count has to follow the provider.
// A nil SubscriptionItemID targets the tenant-wide pool.
type SeatChange struct {
	TenantID           string  `json:"tenant_id"`
	SubscriptionItemID *string `json:"subscription_item_id,omitempty"`
	Seats              int     `json:"seats"`
	Queued             bool    `json:"queued"`
}

type Outcome struct {
	EventID   string       `json:"event_id"`
	Type      string       `json:"type"`
	Status    EventStatus  `json:"status"`
	Duplicate bool         `json:"duplicate,omitempty"`
	Changes   []SeatChange `json:"changes,omitempty"`
}
