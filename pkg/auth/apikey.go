package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// KeyStore maps API keys to org IDs. Only SHA-256 digests of the keys are
// held in memory. Safe for concurrent use.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]string // SHA-256(apiKey) → orgID
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]string)}
}

// ParseKeyStore builds a KeyStore from a comma-separated "org:key" list, e.g.
// "org1:sk-abc,org2:sk-def". Blank entries are ignored; malformed ones fail.
func ParseKeyStore(raw string) (*KeyStore, error) {
	ks := NewKeyStore()
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		org, key, ok := strings.Cut(pair, ":")
		org, key = strings.TrimSpace(org), strings.TrimSpace(key)
		if !ok || org == "" || key == "" {
			return nil, fmt.Errorf("auth: malformed key entry %q", pair)
		}
		ks.Add(org, key)
	}
	return ks, nil
}

// Add registers apiKey for orgID.
func (ks *KeyStore) Add(orgID, apiKey string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[hashKey(apiKey)] = orgID
}

// Lookup returns the org ID for a given API key.
func (ks *KeyStore) Lookup(apiKey string) (orgID string, ok bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	orgID, ok = ks.keys[hashKey(apiKey)]
	return
}

// Len returns the number of configured keys.
func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
