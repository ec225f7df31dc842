package notification

import (
	"context"
	"sync"

	"github.com/mandiworks/tradecore-go/internal/domain/notify"
)

// StaticPreferences is an in-memory preference provider. Users without
// an explicit entry get the default: opted in, in-app only, no top-N
// cap. A persistent provider can replace it without touching the router.
type StaticPreferences struct {
	mu    sync.RWMutex
	prefs map[string]notify.Preference
}

// NewStaticPreferences creates an empty provider
func NewStaticPreferences() *StaticPreferences {
	return &StaticPreferences{prefs: make(map[string]notify.Preference)}
}

// PreferenceFor returns the user's preference or the default
func (p *StaticPreferences) PreferenceFor(_ context.Context, userID string) (notify.Preference, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pref, ok := p.prefs[userID]; ok {
		return pref, nil
	}
	return notify.Preference{UserID: userID}, nil
}

// Set stores a user's preference
func (p *StaticPreferences) Set(pref notify.Preference) {
	p.mu.Lock()
	p.prefs[pref.UserID] = pref
	p.mu.Unlock()
}
