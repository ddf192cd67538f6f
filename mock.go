package neomapper

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MockCall represents a recorded statement run on the mock runner.
type MockCall struct {
	Query     string
	Params    map[string]any
	Read      bool
	Timestamp time.Time
}

type mockResponse struct {
	result *neo4j.EagerResult
	err    error
}

// MockRunner is a DBRunner for testing. Responses are queued and handed out
// in order, one per Run; once the queue is empty Run returns an empty result.
// Every call is recorded for verification.
type MockRunner struct {
	mu sync.RWMutex

	calls     []MockCall
	responses []mockResponse
}

// NewMockRunner creates a new mock runner for testing.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		calls:     make([]MockCall, 0),
		responses: make([]mockResponse, 0),
	}
}

// Run records the call and returns the next queued response.
func (m *MockRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Query:     query,
		Params:    params,
		Read:      routingFrom(ctx) == neo4j.Read,
		Timestamp: time.Now(),
	})

	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp.result, resp.err
	}
	return &neo4j.EagerResult{}, nil
}

// AddRecords queues a result made of the given records.
func (m *MockRunner) AddRecords(records ...*neo4j.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	if len(records) > 0 {
		keys = records[0].Keys
	}
	m.responses = append(m.responses, mockResponse{
		result: &neo4j.EagerResult{Keys: keys, Records: records},
	})
}

// AddError queues a failing run.
func (m *MockRunner) AddError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
}

// GetCalls returns a copy of all recorded calls.
func (m *MockRunner) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Queries returns the text of every recorded call, in order.
func (m *MockRunner) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queries := make([]string, len(m.calls))
	for i, c := range m.calls {
		queries[i] = c.Query
	}
	return queries
}

// CallCount returns the number of recorded calls.
func (m *MockRunner) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Reset clears recorded calls and queued responses.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]MockCall, 0)
	m.responses = make([]mockResponse, 0)
}

// NewRecord builds a driver record from column keys and values, in order.
func NewRecord(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

// NewNode builds a driver node value.
func NewNode(id Identity, labels []string, props map[string]any) neo4j.Node {
	if props == nil {
		props = map[string]any{}
	}
	return neo4j.Node{Id: id, Labels: labels, Props: props}
}

// NewRelationship builds a driver relationship value from start to end.
func NewRelationship(id Identity, typ string, start, end Identity, props map[string]any) neo4j.Relationship {
	if props == nil {
		props = map[string]any{}
	}
	return neo4j.Relationship{Id: id, Type: typ, StartId: start, EndId: end, Props: props}
}
