package testsupport

import (
	"context"
	"sync"
	"time"

	"tripmind/internal/stream"
)

// Script is one canned gateway response
type Script struct {
	Events []stream.Event
	// Err is returned from Stream instead of a channel
	Err error
	// Delay is waited before each event
	Delay time.Duration
	// Hang keeps the channel open after the last event until ctx is done
	Hang bool
}

// ScriptedGateway is a stream.Gateway that replays scripts per handler.
// Successive calls for one handler consume its scripts in order; the last
// script repeats. Handlers without scripts use the default script.
type ScriptedGateway struct {
	mu       sync.Mutex
	scripts  map[string][]Script
	calls    map[string]int
	def      Script
	requests []stream.Request
	wg       sync.WaitGroup
}

func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{
		scripts: make(map[string][]Script),
		calls:   make(map[string]int),
	}
}

// On appends a script for handler
func (g *ScriptedGateway) On(handler string, s Script) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[handler] = append(g.scripts[handler], s)
	return g
}

// Events appends a script made of events for handler
func (g *ScriptedGateway) Events(handler string, events ...stream.Event) *ScriptedGateway {
	return g.On(handler, Script{Events: events})
}

// Default sets the script used by handlers without their own
func (g *ScriptedGateway) Default(s Script) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.def = s
	return g
}

func (g *ScriptedGateway) Stream(ctx context.Context, req stream.Request) (<-chan stream.Event, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := g.calls[req.Handler]
	g.calls[req.Handler] = n + 1
	script := g.def
	if list := g.scripts[req.Handler]; len(list) > 0 {
		if n >= len(list) {
			n = len(list) - 1
		}
		script = list[n]
	}
	g.mu.Unlock()

	if script.Err != nil {
		return nil, script.Err
	}

	out := make(chan stream.Event)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(out)

		for _, ev := range script.Events {
			if script.Delay > 0 {
				select {
				case <-time.After(script.Delay):
				case <-ctx.Done():
					return
				}
			}
			if !stream.Send(ctx, out, ev) {
				return
			}
		}
		if script.Hang {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// Calls returns the number of Stream calls made for handler
func (g *ScriptedGateway) Calls(handler string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[handler]
}

// Requests returns a copy of all received requests in call order
func (g *ScriptedGateway) Requests() []stream.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]stream.Request(nil), g.requests...)
}

// Wait blocks until every producer goroutine has exited
func (g *ScriptedGateway) Wait() {
	g.wg.Wait()
}
