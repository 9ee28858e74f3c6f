package amqp

import (
	"encoding/json"
	"testing"

	"paghetta/internal/core"
)

func TestNotificationRoundTrip(t *testing.T) {
	msg, err := NewNotification(KindBudgetAlert, BudgetAlertPayload{
		AccountID:  "c1",
		Category:   core.CategoryToys,
		Status:     core.BudgetWarning,
		SpentCents: 1700,
		LimitCents: 2000,
	})
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := NotificationFromJSON(data)
	if err != nil {
		t.Fatalf("NotificationFromJSON() error = %v", err)
	}
	if parsed.Kind != KindBudgetAlert {
		t.Errorf("Kind = %q, want %q", parsed.Kind, KindBudgetAlert)
	}

	var payload BudgetAlertPayload
	if err := json.Unmarshal(parsed.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.AccountID != "c1" || payload.Status != core.BudgetWarning || payload.SpentCents != 1700 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload any
		check   func(t *testing.T, decoded any)
	}{
		{
			name:    "allowance paid",
			kind:    KindAllowancePaid,
			payload: AllowancePaidPayload{AccountID: "c1", AmountCents: 1500},
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(AllowancePaidPayload)
				if !ok || p.AccountID != "c1" || p.AmountCents != 1500 {
					t.Errorf("decoded = %#v", decoded)
				}
			},
		},
		{
			name:    "reward approved",
			kind:    KindRewardApproved,
			payload: RewardApprovedPayload{AccountID: "c1", TaskTitle: "Mow the lawn", AmountCents: 500},
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(RewardApprovedPayload)
				if !ok || p.TaskTitle != "Mow the lawn" {
					t.Errorf("decoded = %#v", decoded)
				}
			},
		},
		{
			name:    "budget alert",
			kind:    KindBudgetAlert,
			payload: BudgetAlertPayload{AccountID: "c1", Category: core.CategoryFood, Status: core.BudgetAtLimit, SpentCents: 2000, LimitCents: 2000},
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(BudgetAlertPayload)
				if !ok || p.Status != core.BudgetAtLimit || p.Category != core.CategoryFood {
					t.Errorf("decoded = %#v", decoded)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewNotification(tt.kind, tt.payload)
			if err != nil {
				t.Fatalf("NewNotification() error = %v", err)
			}
			data, err := msg.ToJSON()
			if err != nil {
				t.Fatalf("ToJSON() error = %v", err)
			}
			parsed, err := NotificationFromJSON(data)
			if err != nil {
				t.Fatalf("NotificationFromJSON() error = %v", err)
			}
			decoded, err := parsed.DecodePayload()
			if err != nil {
				t.Fatalf("DecodePayload() error = %v", err)
			}
			tt.check(t, decoded)
		})
	}
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	n := &Notification{Kind: "telemetry", Payload: []byte(`{}`)}
	if _, err := n.DecodePayload(); err == nil {
		t.Error("DecodePayload() should fail on an unknown kind")
	}
}

func TestNotificationFromJSON_Invalid(t *testing.T) {
	if _, err := NotificationFromJSON([]byte(`{"kind": 42}`)); err == nil {
		t.Error("NotificationFromJSON() should fail with invalid JSON")
	}
}
