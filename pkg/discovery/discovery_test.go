package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstance(t *testing.T) {
	instance, err := parseInstance("order-service", "10.0.0.7:50052")
	require.NoError(t, err)
	assert.Equal(t, "order-service", instance.Name)
	assert.Equal(t, "10.0.0.7", instance.Host)
	assert.Equal(t, 50052, instance.Port)
	assert.Equal(t, "10.0.0.7:50052", instance.Addr())

	_, err = parseInstance("order-service", "10.0.0.7")
	assert.Error(t, err)
	_, err = parseInstance("order-service", "host:http")
	assert.Error(t, err)
}

func TestInstanceAddr_IPv6(t *testing.T) {
	instance := &ServiceInstance{Host: "::1", Port: 50052}
	assert.Equal(t, "[::1]:50052", instance.Addr())
}
