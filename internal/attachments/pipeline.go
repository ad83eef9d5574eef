package attachments

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Pending is a validated file waiting for the create form to be submitted.
// Name is its identity within the pending set.
type Pending struct {
	Name    string
	Type    string
	Encoded string
	File    File
}

// Selection reports what happened to one batch of selected files.
type Selection struct {
	Accepted []string
	Rejected []string
	Failed   []string
}

// Pipeline owns the pending set of the create form.
type Pipeline struct {
	encoder Encoder
	log     zerolog.Logger

	mutex   sync.Mutex
	pending []Pending
	message string
}

func NewPipeline(encoder Encoder, log zerolog.Logger) *Pipeline {
	return &Pipeline{encoder: encoder, log: log}
}

// Select validates every file on its own, encodes the accepted ones
// concurrently and merges them into the pending set in selection order.
// Each merge is insert-if-absent by name against the current set, so
// batches running side by side never drop each other's files.
func (p *Pipeline) Select(ctx context.Context, files []File) (Selection, error) {
	var sel Selection

	p.mutex.Lock()
	p.message = ""
	p.mutex.Unlock()

	type encoded struct {
		pending Pending
		err     error
		ok      bool
	}
	results := make([]encoded, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		if !IsAllowedType(f.Type) {
			sel.Rejected = append(sel.Rejected, f.Name)
			p.log.Debug().Str("file", f.Name).Str("type", f.Type).Msg("rejected attachment")
			continue
		}
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			payload, err := p.encoder.Encode(ctx, f)
			results[i] = encoded{
				pending: Pending{Name: f.Name, Type: f.Type, Encoded: payload, File: f},
				err:     err,
				ok:      err == nil,
			}
		}(i, f)
	}
	wg.Wait()

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(sel.Rejected) > 0 {
		p.message = RejectMessage
	}
	for i, r := range results {
		if r.err != nil {
			sel.Failed = append(sel.Failed, files[i].Name)
			p.log.Error().Err(r.err).Str("file", files[i].Name).Msg("failed to encode attachment")
			continue
		}
		if !r.ok {
			continue
		}
		if p.indexLocked(r.pending.Name) >= 0 {
			if rv, ok := p.encoder.(interface{ Revoke(string) }); ok {
				rv.Revoke(r.pending.Encoded)
			}
			continue
		}
		p.pending = append(p.pending, r.pending)
		sel.Accepted = append(sel.Accepted, r.pending.Name)
	}
	return sel, ctx.Err()
}

// Remove drops every pending attachment called name. Object URLs behind the
// removed entries are revoked.
func (p *Pipeline) Remove(name string) int {
	p.mutex.Lock()
	kept := p.pending[:0]
	var removed []Pending
	for _, a := range p.pending {
		if a.Name == name {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	p.pending = kept
	p.mutex.Unlock()

	if r, ok := p.encoder.(interface{ Revoke(string) }); ok {
		for _, a := range removed {
			r.Revoke(a.Encoded)
		}
	}
	return len(removed)
}

// Pending returns a copy of the pending set.
func (p *Pipeline) Pending() []Pending {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]Pending(nil), p.pending...)
}

// Message is the shared rejection message of the last batch.
func (p *Pipeline) Message() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.message
}

// Clear empties the pending set after a successful submission. The encoded
// payloads now belong to the created task, so nothing is revoked.
func (p *Pipeline) Clear() {
	p.mutex.Lock()
	p.pending = nil
	p.message = ""
	p.mutex.Unlock()
}

func (p *Pipeline) indexLocked(name string) int {
	for i, a := range p.pending {
		if a.Name == name {
			return i
		}
	}
	return -1
}
