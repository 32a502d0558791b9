package llmchat

import (
	"context"
	"sync"

	"github.com/cortexmem/engine/cortexerr"
)

// ScriptedProvider is a test double that replays a fixed queue of
// responses, or derives a response from a user-supplied function keyed on
// the request. Grounded on the teacher's builder-style MockProvider
// (testutil/mocks/provider.go).
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []string
	fn        func(*Request) (string, error)
	calls     []*Request
	err       error
}

// NewScriptedProvider creates a ScriptedProvider that returns responses in
// order, one per Complete call, and an error once the queue is exhausted.
func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: append([]string(nil), responses...)}
}

// WithFunc overrides response selection with fn, called with the request.
func (p *ScriptedProvider) WithFunc(fn func(*Request) (string, error)) *ScriptedProvider {
	p.fn = fn
	return p
}

// WithError makes every subsequent Complete call fail with err.
func (p *ScriptedProvider) WithError(err error) *ScriptedProvider {
	p.err = err
	return p
}

// Calls returns every request observed so far, for assertions.
func (p *ScriptedProvider) Calls() []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Request(nil), p.calls...)
}

func (p *ScriptedProvider) Name() string { return "scripted-test" }

func (p *ScriptedProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)

	if p.err != nil {
		return nil, p.err
	}
	if p.fn != nil {
		content, err := p.fn(req)
		if err != nil {
			return nil, err
		}
		return &Response{Content: content, Model: "scripted", FinishReason: "stop"}, nil
	}
	if len(p.responses) == 0 {
		return nil, cortexerr.New(cortexerr.LLM, "scripted provider exhausted")
	}
	content := p.responses[0]
	p.responses = p.responses[1:]
	return &Response{Content: content, Model: "scripted", FinishReason: "stop"}, nil
}
