// internal/export/modbus/client_test.go
package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackRegisters_BigEndian(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0xFF}, packRegisters([]uint16{0x1234, 0x00FF}))
	assert.Empty(t, packRegisters(nil))
}

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	_, err := NewEndpointClient(Config{})
	assert.Error(t, err)

	c, err := NewEndpointClient(Config{Endpoint: "127.0.0.1:1"})
	assert.NoError(t, err)
	assert.NoError(t, c.Close())
}
