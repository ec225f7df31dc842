package sanctions

import (
	"strings"
	"sync"
)

// StaticList is the configuration-backed sanctions list. Refresh means
// calling Replace with the new set; lookups are lock-light and case
// insensitive.
type StaticList struct {
	mu        sync.RWMutex
	countries map[string]struct{}
}

// NewStaticList builds a list from configured country codes
func NewStaticList(countries []string) *StaticList {
	l := &StaticList{}
	l.Replace(countries)
	return l
}

// IsSanctioned reports whether the country code is on the list
func (l *StaticList) IsSanctioned(countryCode string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.countries[strings.ToUpper(countryCode)]
	return ok
}

// Replace swaps the list wholesale
func (l *StaticList) Replace(countries []string) {
	next := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		next[strings.ToUpper(c)] = struct{}{}
	}
	l.mu.Lock()
	l.countries = next
	l.mu.Unlock()
}
