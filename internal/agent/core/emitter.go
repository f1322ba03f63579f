package core

import "sync"

// StepEmitter observes a session. Implementations must not rely on being
// able to influence the loop: panics are recovered and logged.
type StepEmitter interface {
	EmitStep(Step)
	EmitResult(Result)
}

// EmitterFunc adapts a plain callback that only cares about steps.
type EmitterFunc func(Step)

func (f EmitterFunc) EmitStep(s Step)   { f(s) }
func (f EmitterFunc) EmitResult(Result) {}

// Event carries exactly one of Step or Result.
type Event struct {
	Step   *Step   `json:"step,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// ChannelEmitter queues events without ever blocking the loop and delivers
// them in order on Events. The channel is closed after the result event, or
// after Stop when the consumer goes away early.
type ChannelEmitter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	closed   bool
	out      chan Event
	stop     chan struct{}
	stopOnce sync.Once
}

func NewChannelEmitter() *ChannelEmitter {
	e := &ChannelEmitter{out: make(chan Event), stop: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.pump()
	return e
}

func (e *ChannelEmitter) Events() <-chan Event { return e.out }

func (e *ChannelEmitter) EmitStep(s Step) { e.push(Event{Step: &s}) }

// EmitResult queues the final event and closes the queue.
func (e *ChannelEmitter) EmitResult(r Result) {
	e.push(Event{Result: &r})
	e.Close()
}

// Close stops accepting events; queued ones are still delivered.
func (e *ChannelEmitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Stop drops undelivered events and releases the pump goroutine.
func (e *ChannelEmitter) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.Close()
}

func (e *ChannelEmitter) push(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
	e.cond.Signal()
}

func (e *ChannelEmitter) pump() {
	defer close(e.out)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		select {
		case e.out <- ev:
		case <-e.stop:
			return
		}
	}
}
