package driver

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// Static is an in-memory Drivers returning canned responses by materialization name.
// Materializations without a canned response or error receive Recommend constraints.
type Static struct {
	Responses map[string]*ValidateResponse
	Errors    map[string]error

	mu       sync.Mutex
	requests []Call
}

// Call records one invocation of a Static driver.
type Call struct {
	EndpointType   catalog.EndpointType
	EndpointConfig json.RawMessage
	Request        *ValidateRequest
}

// ValidateMaterialization implements Drivers.
func (s *Static) ValidateMaterialization(ctx context.Context, endpointType catalog.EndpointType, endpointConfig json.RawMessage, req *ValidateRequest) (*ValidateResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, Call{
		EndpointType:   endpointType,
		EndpointConfig: endpointConfig,
		Request:        req,
	})
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.Errors[req.Materialization]; ok {
		return nil, err
	}
	if resp, ok := s.Responses[req.Materialization]; ok {
		return resp, nil
	}
	return Recommend(&req.Collection), nil
}

// Calls returns the recorded invocations, in arrival order.
func (s *Static) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.requests...)
}
