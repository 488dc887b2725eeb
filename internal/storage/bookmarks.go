package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// BookmarkManager manages named positions in the span buffer. Bookmarks
// are lightweight markers for "what happened since X" queries.
type BookmarkManager struct {
	sync.RWMutex
	bookmarks map[string]*Bookmark
}

// Bookmark marks a point in the span stream by absolute buffer position.
type Bookmark struct {
	Name      string
	CreatedAt time.Time
	SpanPos   int
}

// NewBookmarkManager creates an empty bookmark manager.
func NewBookmarkManager() *BookmarkManager {
	return &BookmarkManager{
		bookmarks: make(map[string]*Bookmark),
	}
}

// Create records a bookmark at the given span position.
// Returns an error if the name is already taken.
func (bm *BookmarkManager) Create(name string, spanPos int) error {
	bm.Lock()
	defer bm.Unlock()

	if _, exists := bm.bookmarks[name]; exists {
		return fmt.Errorf("bookmark %q already exists", name)
	}

	bm.bookmarks[name] = &Bookmark{
		Name:      name,
		CreatedAt: time.Now(),
		SpanPos:   spanPos,
	}
	return nil
}

// Get retrieves a bookmark by name.
func (bm *BookmarkManager) Get(name string) (*Bookmark, error) {
	bm.RLock()
	defer bm.RUnlock()

	b, exists := bm.bookmarks[name]
	if !exists {
		return nil, fmt.Errorf("bookmark %q not found", name)
	}

	copied := *b
	return &copied, nil
}

// Delete removes a bookmark by name.
func (bm *BookmarkManager) Delete(name string) error {
	bm.Lock()
	defer bm.Unlock()

	if _, exists := bm.bookmarks[name]; !exists {
		return fmt.Errorf("bookmark %q not found", name)
	}
	delete(bm.bookmarks, name)
	return nil
}

// List returns all bookmark names, sorted.
func (bm *BookmarkManager) List() []string {
	bm.RLock()
	defer bm.RUnlock()

	names := make([]string, 0, len(bm.bookmarks))
	for name := range bm.bookmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of bookmarks.
func (bm *BookmarkManager) Count() int {
	bm.RLock()
	defer bm.RUnlock()
	return len(bm.bookmarks)
}

// Clear removes all bookmarks.
func (bm *BookmarkManager) Clear() {
	bm.Lock()
	defer bm.Unlock()
	bm.bookmarks = make(map[string]*Bookmark)
}
