package payments

import (
	"encoding/json"
	"errors"
	"strings"
)

// Event is the minimal shape of a provider webhook event. Account is set on
// events originating from a coach's sub-merchant account; it scopes the
// follow-up provider fetch. The embedded object snapshot is only mined for
// ids. The sync engine always re-fetches current provider state instead of
// trusting the snapshot, so out-of-order delivery is harmless.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("webhook event missing type")
	}
	return &ev, nil
}

// IsSubscriptionEvent reports whether the event is a customer.subscription.*
// lifecycle event.
func (e *Event) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.Type, "customer.subscription.")
}

// IsCheckoutCompleted reports whether the event is a completed checkout session.
func (e *Event) IsCheckoutCompleted() bool {
	return e.Type == "checkout.session.completed"
}

// SubscriptionID extracts the provider subscription id referenced by the
// event: the object id for subscription events, the session's subscription
// field for completed checkouts.
func (e *Event) SubscriptionID() string {
	if e.IsSubscriptionEvent() {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
			return ""
		}
		return obj.ID
	}
	if e.IsCheckoutCompleted() {
		var obj struct {
			Subscription string `json:"subscription"`
		}
		if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
			return ""
		}
		return obj.Subscription
	}
	return ""
}
