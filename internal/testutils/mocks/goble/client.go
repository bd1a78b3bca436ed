package goble

import (
	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of the GATT client calls the transport makes.
// Close Gone to simulate a link loss reported by the platform.
type MockClient struct {
	mock.Mock
	Gone chan struct{}
}

// NewMockClient returns a client whose Disconnected channel is open.
func NewMockClient() *MockClient {
	return &MockClient{Gone: make(chan struct{})}
}

func (m *MockClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	args := m.Called(filter)
	switch v := args.Get(0).(type) {
	case func([]ble.UUID) []*ble.Service:
		return v(filter), args.Error(1)
	case []*ble.Service:
		return v, args.Error(1)
	default:
		return nil, args.Error(1)
	}
}

func (m *MockClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	args := m.Called(filter, s)
	v, _ := args.Get(0).([]*ble.Characteristic)
	return v, args.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	return m.Gone
}
