package engine

import (
	"sync"
	"time"
)

// domainEntry records the engine a domain must be sent to, with a TTL.
type domainEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers domains whose lightweight responses were defense
// pages, so the dispatcher can send them straight to the renderer.
// Entries expire after the configured TTL and are cleaned up periodically.
type DomainMemory struct {
	store sync.Map // domain (string) -> *domainEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewDomainMemory creates a DomainMemory with the given TTL and starts
// a background goroutine that prunes expired entries.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go dm.cleanupLoop(cleanupInterval(ttl))
	return dm
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Hour {
		return max(ttl, time.Minute)
	}
	return time.Hour
}

// Get returns the remembered engine name for a domain, or "" if not found / expired.
func (dm *DomainMemory) Get(domain string) string {
	val, ok := dm.store.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*domainEntry)
	if time.Now().After(entry.expiresAt) {
		dm.store.Delete(domain)
		return ""
	}
	return entry.engineName
}

// Set routes a domain to engineName until the TTL expires.
func (dm *DomainMemory) Set(domain, engineName string) {
	dm.store.Store(domain, &domainEntry{
		engineName: engineName,
		expiresAt:  time.Now().Add(dm.ttl),
	})
}

// Delete forgets a domain.
func (dm *DomainMemory) Delete(domain string) {
	dm.store.Delete(domain)
}

// Len returns the number of stored entries, expired or not.
func (dm *DomainMemory) Len() int {
	n := 0
	dm.store.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stop terminates the background cleanup goroutine. Safe to call once.
func (dm *DomainMemory) Stop() {
	close(dm.done)
}

// cleanupLoop periodically deletes expired entries.
func (dm *DomainMemory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				entry := value.(*domainEntry)
				if now.After(entry.expiresAt) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}
