package models

// RawChange is a row-change notification as produced by a change-feed
// provider, before normalization.
type RawChange struct {
	// EventType is INSERT, UPDATE or DELETE (case is not significant).
	EventType string `json:"event_type"`

	// NewRow is the row after the change. Nil for deletes.
	NewRow Row `json:"new_row,omitempty"`

	// OldRow is the row before the change, when the provider knows it.
	OldRow Row `json:"old_row,omitempty"`
}

// SubscriptionState is a status reported by the change-feed provider for one
// table subscription.
type SubscriptionState string

const (
	// StateSubscribed acknowledges that the subscription is live.
	StateSubscribed SubscriptionState = "SUBSCRIBED"
	// StateChannelError reports that the subscription failed.
	StateChannelError SubscriptionState = "CHANNEL_ERROR"
	// StateClosed reports that the provider closed the subscription.
	StateClosed SubscriptionState = "CLOSED"
)
