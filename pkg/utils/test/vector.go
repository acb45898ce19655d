package testutils

import (
	"context"

	"github.com/papercomputeco/engram/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver. Query returns Results
// when set, otherwise every stored document in insertion order.
type MockVectorDriver struct {
	documents map[string]vector.Document
	order     []string

	Results []vector.QueryResult
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	for _, d := range docs {
		if _, ok := m.documents[d.ID]; !ok {
			m.order = append(m.order, d.ID)
		}
		m.documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	results := m.Results
	if results == nil {
		for _, id := range m.order {
			results = append(results, vector.QueryResult{Document: m.documents[id], Score: 1})
		}
	}
	if len(results) < topK {
		return results, nil
	}
	return results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	var out []vector.Document
	for _, id := range ids {
		if d, ok := m.documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.documents, id)
	}
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
