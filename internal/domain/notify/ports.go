package notify

import "context"

// Channel is a delivery mechanism for user notifications
type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelInApp Channel = "IN_APP"
)

// Preference is one user's notification settings. TopN limits match
// notifications to the N best-scored proposals; zero means no limit.
type Preference struct {
	UserID   string
	OptedOut bool
	TopN     int
	Channels []Channel
}

// EnabledChannels returns the user's channel set, defaulting to IN_APP
func (p Preference) EnabledChannels() []Channel {
	if len(p.Channels) == 0 {
		return []Channel{ChannelInApp}
	}
	return p.Channels
}

// Payload is the redacted event content delivered to one recipient.
// Fields the recipient is not authorised to see are never included.
type Payload struct {
	EventType string
	Subject   string
	Body      string
	Fields    map[string]string
}

// PreferenceProvider resolves a user's notification preference
type PreferenceProvider interface {
	PreferenceFor(ctx context.Context, userID string) (Preference, error)
}

// Sender delivers a payload over one concrete channel. Transient
// failures are retried with the channel's own policy.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, userID string, payload Payload) error
}
