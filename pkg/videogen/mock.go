package videogen

import "context"

// MockGenerator is a configurable Generator for tests.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req *Request) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "https://cdn.example.com/mock.mp4", nil
}
