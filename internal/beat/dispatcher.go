package beat

import "log"

// Subscription is the handle returned by listener registration. Unsubscribe
// is safe to call any number of times.
type Subscription struct {
	d  *dispatcher
	id int
}

// Unsubscribe removes the listener. Further calls are no-ops.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.d == nil {
		return
	}
	delete(s.d.subs, s.id)
	s.d = nil
}

// dispatcher is a listener collection for one event kind. Callbacks run on
// the render-loop goroutine; a panicking listener is logged and skipped
// without stopping the others.
type dispatcher struct {
	name   string
	logger *log.Logger
	subs   map[int]func(State)
	next   int
}

func newDispatcher(name string, logger *log.Logger) *dispatcher {
	return &dispatcher{
		name:   name,
		logger: logger,
		subs:   make(map[int]func(State)),
	}
}

func (d *dispatcher) subscribe(fn func(State)) *Subscription {
	d.next++
	id := d.next
	d.subs[id] = fn
	return &Subscription{d: d, id: id}
}

func (d *dispatcher) emit(st State) {
	for id, fn := range d.subs {
		d.safeCall(id, fn, st)
	}
}

func (d *dispatcher) safeCall(id int, fn func(State), st State) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Printf("%s listener %d panicked: %v", d.name, id, r)
		}
	}()
	fn(st)
}
