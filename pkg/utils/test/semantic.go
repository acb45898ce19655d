package testutils

import (
	"context"
	"errors"
)

// MockSemanticIndex records indexed sessions and returns NearestIDs from
// Nearest.
type MockSemanticIndex struct {
	Indexed    map[string]string
	NearestIDs []string

	// Fail makes every call return an error.
	Fail bool
}

func NewMockSemanticIndex() *MockSemanticIndex {
	return &MockSemanticIndex{Indexed: make(map[string]string)}
}

func (m *MockSemanticIndex) Index(_ context.Context, id, text string) error {
	if m.Fail {
		return errors.New("mock semantic index failure")
	}
	m.Indexed[id] = text
	return nil
}

func (m *MockSemanticIndex) Nearest(_ context.Context, _ string, k int) ([]string, error) {
	if m.Fail {
		return nil, errors.New("mock semantic index failure")
	}
	if len(m.NearestIDs) < k {
		return m.NearestIDs, nil
	}
	return m.NearestIDs[:k], nil
}
