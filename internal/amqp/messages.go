package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Entity names carried by change events.
const (
	EntityEntry    = "entry"
	EntityRule     = "rule"
	EntityOverride = "override"
)

// Actions carried by change events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// BudgetChangedMessage announces that an owner's budget data changed.
// It carries identifiers only; consumers reload what they need.
type BudgetChangedMessage struct {
	OwnerID   string    `json:"owner_id"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetChangedMessage(ownerID, entity, entityID, action string) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		OwnerID:   ownerID,
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangedMessageFromJSON decodes a message and rejects ones without an owner.
func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errors.New("message has no owner_id")
	}
	return &msg, nil
}
