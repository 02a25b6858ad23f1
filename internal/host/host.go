// Package host delivers directives from the engine to the game host.
package host

import (
	"sync"

	"github.com/mcoot/accessgate/internal/model"
)

// Host receives directives about connected actors
type Host interface {
	// Disconnect removes the actor from the host. reason is one of the model.Reason constants.
	Disconnect(actorID model.ActorID, reason, text string)
	// Message shows text to the actor
	Message(actorID model.ActorID, text string)
}

// Recorder is a Host that keeps every directive in memory
type Recorder struct {
	mu         sync.Mutex
	directives []model.Directive
}

var _ Host = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Disconnect(actorID model.ActorID, reason, text string) {
	r.record(model.Directive{Type: model.DirectiveDisconnect, ActorID: actorID, Reason: reason, Text: text})
}

func (r *Recorder) Message(actorID model.ActorID, text string) {
	r.record(model.Directive{Type: model.DirectiveMessage, ActorID: actorID, Text: text})
}

func (r *Recorder) record(d model.Directive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directives = append(r.directives, d)
}

// Directives returns the recorded directives for one actor, in order
func (r *Recorder) Directives(actorID model.ActorID) []model.Directive {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Directive
	for _, d := range r.directives {
		if d.ActorID == actorID {
			out = append(out, d)
		}
	}
	return out
}

// Messages returns the text of message directives for one actor
func (r *Recorder) Messages(actorID model.ActorID) []string {
	var out []string
	for _, d := range r.Directives(actorID) {
		if d.Type == model.DirectiveMessage {
			out = append(out, d.Text)
		}
	}
	return out
}

// Disconnected returns the reason of the first disconnect for an actor
func (r *Recorder) Disconnected(actorID model.ActorID) (string, bool) {
	for _, d := range r.Directives(actorID) {
		if d.Type == model.DirectiveDisconnect {
			return d.Reason, true
		}
	}
	return "", false
}
