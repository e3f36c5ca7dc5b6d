package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	c, err := DefaultConfig().Validate()
	require.NoError(t, err)
	assert.Equal(t, "parodus2rbus.client", c.Component)
	assert.Equal(t, ModeMock, c.Mode)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	c := DefaultConfig()
	c.Mode = "bogus"
	_, err := c.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangeLogLevel(t *testing.T) {
	c := DefaultConfig()
	c.LogLevel = 4
	_, err := c.Validate()
	assert.Error(t, err)
}

func TestValidateFillsZeroValuedFieldsFromDefaults(t *testing.T) {
	c := Config{}
	out, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ServiceName, out.ServiceName)
	assert.Equal(t, DefaultConfig().Cache.MaxEntries, out.Cache.MaxEntries)
}

func TestValidateFillsWSDefaultsOnlyInWSMode(t *testing.T) {
	c := DefaultConfig()
	c.Mode = ModeWS
	c.WSAddr = ""
	c.WSPath = ""
	out, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().WSAddr, out.WSAddr)
	assert.Equal(t, DefaultConfig().WSPath, out.WSPath)
}

func TestSlogLevelMapping(t *testing.T) {
	c := DefaultConfig()
	c.LogLevel = 0
	assert.Equal(t, "ERROR", c.SlogLevel().String())
	c.LogLevel = 3
	assert.Equal(t, "DEBUG", c.SlogLevel().String())
}
