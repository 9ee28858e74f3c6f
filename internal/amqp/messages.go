package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"paghetta/internal/core"
)

// Message kinds carried on the notifications queue. Consumers switch on the
// Kind field before decoding the payload.
const (
	KindAllowancePaid  = "allowance_paid"
	KindRewardApproved = "reward_approved"
	KindBudgetAlert    = "budget_alert"
)

// Notification is the envelope every published message uses.
type Notification struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type AllowancePaidPayload struct {
	AccountID   string `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
}

type RewardApprovedPayload struct {
	AccountID   string `json:"account_id"`
	TaskTitle   string `json:"task_title"`
	AmountCents int64  `json:"amount_cents"`
}

type BudgetAlertPayload struct {
	AccountID  string            `json:"account_id"`
	Category   core.Category     `json:"category"`
	Status     core.BudgetStatus `json:"status"`
	SpentCents int64             `json:"spent_cents"`
	LimitCents int64             `json:"limit_cents"`
}

// NewNotification wraps a payload in the envelope.
func NewNotification(kind string, payload any) (*Notification, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Notification{
		Kind:      kind,
		Payload:   body,
		Timestamp: time.Now(),
	}, nil
}

// DecodePayload unmarshals the payload into the concrete type selected by
// Kind. Consumers type-switch on the result.
func (n *Notification) DecodePayload() (any, error) {
	switch n.Kind {
	case KindAllowancePaid:
		var p AllowancePaidPayload
		return p, json.Unmarshal(n.Payload, &p)
	case KindRewardApproved:
		var p RewardApprovedPayload
		return p, json.Unmarshal(n.Payload, &p)
	case KindBudgetAlert:
		var p BudgetAlertPayload
		return p, json.Unmarshal(n.Payload, &p)
	default:
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}

// ToJSON converts the notification to JSON bytes.
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// NotificationFromJSON creates a notification from JSON bytes.
func NotificationFromJSON(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
