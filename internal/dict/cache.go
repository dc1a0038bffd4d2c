package dict

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/openphon/alignd/pkg/log"
	"golang.org/x/sync/singleflight"
)

// Set is a known-word membership set, keyed by lower-cased word.
type Set map[string]struct{}

func (s Set) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Cache memoizes known-word sets for the lifetime of one batch run. It
// is constructor-injected into the pipelines and reset between batches,
// never shared as process-wide state, so concurrent task executions
// cannot race on it.
type Cache struct {
	root string

	mu    sync.RWMutex
	known map[string]Set
	user  map[string]Set
	sf    singleflight.Group
}

func NewCache(adminRoot string) *Cache {
	return &Cache{
		root:  adminRoot,
		known: make(map[string]Set),
		user:  make(map[string]Set),
	}
}

// KnownWords returns the language's known-word set. A missing or
// malformed backing file degrades to an empty set: downstream treats
// every word as missing instead of aborting the batch.
func (c *Cache) KnownWords(language string) Set {
	c.mu.RLock()
	cached, ok := c.known[language]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	loaded, _, _ := c.sf.Do("known:"+language, func() (any, error) {
		path := NewLanguageFiles(c.root, language).KnownWordsJSON()
		set := loadWordSet(path)
		c.mu.Lock()
		c.known[language] = set
		c.mu.Unlock()
		return set, nil
	})
	return loaded.(Set)
}

// UserWords returns the user's personal word set for the language, or
// (nil, false) when the user has no dictionary.
func (c *Cache) UserWords(userID, language string) (Set, bool) {
	key := userID + ":" + language

	c.mu.RLock()
	cached, ok := c.user[key]
	c.mu.RUnlock()
	if ok {
		if cached == nil {
			return nil, false
		}
		return cached, true
	}

	loaded, _, _ := c.sf.Do("user:"+key, func() (any, error) {
		path := NewLanguageFiles(c.root, language).UserWordsJSON(userID)
		var set Set
		if _, err := os.Stat(path); err == nil {
			set = loadWordSet(path)
		}
		c.mu.Lock()
		c.user[key] = set
		c.mu.Unlock()
		return set, nil
	})
	set := loaded.(Set)
	if set == nil {
		return nil, false
	}
	return set, true
}

// Reset drops all memoized sets. Called between independent batch runs
// to bound memory and avoid stale reads in long-running workers.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.known = make(map[string]Set)
	c.user = make(map[string]Set)
	c.mu.Unlock()
}

func loadWordSet(path string) Set {
	set := make(Set)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Word index %s unavailable, treating all words as missing: %v", path, err)
		return set
	}

	var words map[string]bool
	if err := json.Unmarshal(data, &words); err != nil {
		log.Warn("Word index %s is malformed, treating all words as missing: %v", path, err)
		return set
	}

	for word, ok := range words {
		if ok {
			set[word] = struct{}{}
		}
	}
	return set
}
