package mqtt

import (
	"errors"
	"sync"

	coremqtt "github.com/kilianp07/icusim/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records summaries in memory. It is used in tests.
type MockPublisher struct {
	mu        sync.Mutex
	Summaries []coremqtt.Summary
	Fail      bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSummary records s or fails when Fail is set.
func (m *MockPublisher) PublishSummary(s coremqtt.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.Join(coremqtt.ErrPublish, errors.New("mock failure"))
	}
	m.Summaries = append(m.Summaries, s)
	return nil
}

// Published returns a copy of the recorded summaries.
func (m *MockPublisher) Published() []coremqtt.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.Summary(nil), m.Summaries...)
}

func (m *MockPublisher) Disconnect() {}
