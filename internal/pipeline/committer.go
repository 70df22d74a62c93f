package pipeline

import (
	"fmt"
	"sync"

	"github.com/mboehler/aktis/internal/channel"
	"github.com/mboehler/aktis/internal/storage"
)

// pendingItem is a fully prepared document waiting in the commit buffer,
// together with everything needed to finalize its source after the flush.
type pendingItem struct {
	doc       storage.Document
	tags      []string
	candidate channel.Candidate
	scanner   channel.Scanner
}

// committer batches document inserts into single transactions. It also
// owns the digest reservation set that closes the window between two
// workers hashing identical content in the same run.
type committer struct {
	store *storage.Store
	limit int

	mu      sync.Mutex
	buffer  []pendingItem
	pending map[string]string // tenant+digest -> document ID ("" until buffered)
}

func newCommitter(store *storage.Store, limit int) *committer {
	return &committer{
		store:   store,
		limit:   limit,
		pending: make(map[string]string),
	}
}

func digestKey(tenantCode, digest string) string {
	return tenantCode + "\x00" + digest
}

// checkAndReserve reports whether the digest is already known, either
// committed in the store or claimed by another in-flight item. When it is
// new, the digest is reserved for the caller in the same critical section.
func (c *committer) checkAndReserve(tenantCode, digest string) (existingID string, reserved bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := digestKey(tenantCode, digest)
	if id, ok := c.pending[key]; ok {
		return id, false, nil
	}

	id, err := c.store.FindDocumentIDByDigest(tenantCode, digest)
	switch {
	case err == nil:
		return id, false, nil
	case err == storage.ErrNotFound:
		c.pending[key] = ""
		return "", true, nil
	default:
		return "", false, err
	}
}

// unreserve releases a reservation whose item failed before reaching the
// buffer, so a later retry of the same content can go through.
func (c *committer) unreserve(tenantCode, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, digestKey(tenantCode, digest))
}

// add buffers an item and flushes when the batch is full. The returned
// items are the ones a flush committed (or failed to commit); an empty
// slice with nil error means the buffer has room left.
func (c *committer) add(item pendingItem) ([]pendingItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[digestKey(item.doc.TenantCode, item.doc.Digest)] = item.doc.ID
	c.buffer = append(c.buffer, item)
	if len(c.buffer) < c.limit {
		return nil, nil
	}
	return c.flushLocked()
}

// flush commits whatever remains in the buffer. Called once at the end of
// a run.
func (c *committer) flush() ([]pendingItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *committer) flushLocked() ([]pendingItem, error) {
	if len(c.buffer) == 0 {
		return nil, nil
	}
	items := c.buffer
	c.buffer = nil

	docs := make([]storage.Document, len(items))
	tags := make(map[string][]string, len(items))
	for i, item := range items {
		docs[i] = item.doc
		if len(item.tags) > 0 {
			tags[item.doc.ID] = item.tags
		}
	}

	if err := c.store.InsertDocumentBatch(docs, tags); err != nil {
		// Failed items lose their reservations so the next run can retry
		// them from the untouched source files.
		for _, item := range items {
			delete(c.pending, digestKey(item.doc.TenantCode, item.doc.Digest))
		}
		return items, fmt.Errorf("committing %d documents: %w", len(items), err)
	}
	return items, nil
}
