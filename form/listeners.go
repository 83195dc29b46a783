package form

// Listener fan-out. Snapshots are enqueued in mutation order while the state
// mutex is still held, then drained without it, so listeners may freely read
// the controller or trigger further mutations: a mutation made inside a
// listener is queued behind the current pass instead of recursing into it.

// enqueueLocked records a snapshot for delivery. Called with c.mu held;
// suppressed inside a batch (the batch publishes once at the end).
func (c *Controller) enqueueLocked(snap *Snapshot) {
	if c.batching > 0 {
		return
	}
	c.notifyMu.Lock()
	c.notifyQueue = append(c.notifyQueue, snap)
	c.notifyMu.Unlock()
}

// drain delivers queued snapshots. Only one goroutine drains at a time;
// publishers that find a drain in progress leave their snapshot for it.
func (c *Controller) drain() {
	c.notifyMu.Lock()
	if c.notifying {
		c.notifyMu.Unlock()
		return
	}
	c.notifying = true
	for len(c.notifyQueue) > 0 {
		next := c.notifyQueue[0]
		c.notifyQueue = c.notifyQueue[1:]

		fns := make([]func(*Snapshot), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		subs := make([]chan *Snapshot, 0, len(c.subscribers))
		for _, ch := range c.subscribers {
			subs = append(subs, ch)
		}
		ws := c.waiters
		c.waiters = nil
		c.notifyMu.Unlock()

		for _, fn := range fns {
			fn(next)
		}
		for _, ch := range subs {
			// Drop-on-full: a slow subscriber sees the latest snapshot it
			// can keep up with, never a blocked controller.
			select {
			case ch <- next:
			default:
			}
		}
		for _, w := range ws {
			close(w)
		}

		c.notifyMu.Lock()
	}
	c.notifying = false
	c.notifyMu.Unlock()
}

// AddListener registers fn to run synchronously after every published
// snapshot. The returned function removes it.
func (c *Controller) AddListener(fn func(*Snapshot)) func() {
	c.notifyMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.notifyMu.Unlock()
	return func() {
		c.notifyMu.Lock()
		delete(c.listeners, id)
		c.notifyMu.Unlock()
	}
}

// Subscribe returns a channel of published snapshots and a cancel function.
// The channel is closed by cancel or Close. Snapshots a slow receiver
// cannot accept are dropped.
func (c *Controller) Subscribe(buffer int) (<-chan *Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Snapshot, buffer)
	c.notifyMu.Lock()
	id := c.nextSubscribe
	c.nextSubscribe++
	c.subscribers[id] = ch
	c.notifyMu.Unlock()
	return ch, func() {
		c.notifyMu.Lock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
		c.notifyMu.Unlock()
	}
}

// changeWait returns a channel closed on the next published snapshot.
func (c *Controller) changeWait() <-chan struct{} {
	w := make(chan struct{})
	c.notifyMu.Lock()
	c.waiters = append(c.waiters, w)
	c.notifyMu.Unlock()
	return w
}

// Batch coalesces every mutation made inside fn into a single snapshot
// publication and a single history entry.
func (c *Controller) Batch(fn func()) {
	c.mu.Lock()
	c.batching++
	before := c.snap
	if c.batching == 1 {
		c.historyHold = true
	}
	c.mu.Unlock()

	fn()

	c.mu.Lock()
	c.batching--
	done := c.batching == 0
	var out *Snapshot
	if done {
		c.historyHold = false
		if c.snap != before {
			if !valuesMapsEqual(c.snap.values, c.history[c.cursor]) {
				c.appendHistoryLocked(c.snap)
			}
			out = c.snap
		}
	}
	c.mu.Unlock()
	if out != nil {
		c.notifyMu.Lock()
		c.notifyQueue = append(c.notifyQueue, out)
		c.notifyMu.Unlock()
		c.drain()
	}
}

func valuesMapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !valuesEqual(v, b[k]) {
			return false
		}
	}
	return true
}
