package form

import (
	"context"
	"time"

	"github.com/tbxark/formstate/store"
)

// Debounced autosave. Mutations schedule a save; the timer runs outside the
// state mutex and snapshots the values through a deep copy, so later
// mutations cannot corrupt what the store received. Store failures are
// logged, never surfaced into the mutation path.

func (c *Controller) scheduleSaveLocked() {
	if c.store == nil || c.closed {
		return
	}
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	d := c.saveDebounce
	if d <= 0 {
		d = time.Second
	}
	c.saveTimer = time.AfterFunc(d, c.saveNow)
}

func (c *Controller) saveNow() {
	c.mu.Lock()
	if c.closed || c.store == nil {
		c.mu.Unlock()
		return
	}
	values := c.snap.Values()
	s, id := c.store, c.id
	c.mu.Unlock()

	copied, err := store.DeepCopy(values)
	if err != nil {
		c.log.Warn("failed to copy form values for save", "form", id, "error", err)
		return
	}
	if err := s.Save(context.Background(), id, copied); err != nil {
		c.log.Warn("failed to save form values", "form", id, "error", err)
	}
}

// Flush forces a pending debounced save to run now. Useful on shutdown.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	pending := c.store != nil && !c.closed
	c.mu.Unlock()
	if pending {
		c.saveNow()
	}
}
