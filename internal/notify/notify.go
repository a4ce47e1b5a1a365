// Package notify builds the notification events handed to the external
// notification collaborator. Events are staged in the outbox table inside
// the mutation's own DB transaction and shipped by cmd/notifier; the ledger
// treats delivery as fire-and-forget.
package notify

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/crxtrade/ledger/internal/model"
)

type Event struct {
	UserID   uint64                 `json:"userId"`
	Type     string                 `json:"type"`
	Message  string                 `json:"message"`
	Amount   decimal.Decimal        `json:"amount"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Outbox renders the event as an outbox row.
func (e Event) Outbox() (*model.OutboxEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &model.OutboxEvent{
		UserID:    e.UserID,
		EventType: e.Type,
		Payload:   string(payload),
	}, nil
}
