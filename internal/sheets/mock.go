package sheets

import (
	"context"
	"sync"
)

// WriteCall records one Write on a MockWriter.
type WriteCall struct {
	Error  error
	Report *Report
}

// MockWriter records reports instead of exporting them.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, report *Report) error
	LastReport     *Report
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// NewMockWriter returns a MockWriter that accepts every report.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements ReportWriter.
func (m *MockWriter) Write(ctx context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, report)
	}
	m.WriteCallCount++
	m.LastReport = report
	m.WriteCalls = append(m.WriteCalls, WriteCall{Report: report, Error: err})
	return err
}

// GetWriteCalls returns a copy of the recorded calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteCall(nil), m.WriteCalls...)
}

// SetWriteError makes every later Write fail with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteFunc = func(context.Context, *Report) error { return err }
}
