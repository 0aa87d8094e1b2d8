package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a deterministic in‑memory Model useful for tests & examples.
//
// Responses are chosen in this order:
//  1. the next entry of the scripted queue (Enqueue / EnqueueError)
//  2. the handler set via SetHandler
//  3. a canned response registered for the last user message (AddResponse)
//  4. "Mock response to: <last user message>"
//
// Every request is recorded and can be inspected with Requests and Calls.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	queue     []scripted
	handler   func(Request) (Response, error)
	requests  []Request
}

type scripted struct {
	resp Response
	err  error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted responses consumed in FIFO order.
func (m *MockModel) Enqueue(resps ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resps {
		m.queue = append(m.queue, scripted{resp: r})
	}
}

// EnqueueText appends scripted text-only responses.
func (m *MockModel) EnqueueText(texts ...string) {
	for _, t := range texts {
		m.Enqueue(Response{Content: t, FinishReason: "stop"})
	}
}

// EnqueueError appends a scripted failure.
func (m *MockModel) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{err: err})
}

// SetHandler installs a function computing responses once the queue is drained.
func (m *MockModel) SetHandler(fn func(Request) (Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return next.resp, next.err
	}
	handler := m.handler
	canned, ok := m.responses[req.LastUserContent()]
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("no messages provided")
	}
	if !ok {
		canned = fmt.Sprintf("Mock response to: %s", req.LastUserContent())
	}
	return Response{Content: canned, FinishReason: "stop"}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
