package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nconsole/wsconsole/pkg/config"
	"nconsole/wsconsole/pkg/console"
)

type nopDiag struct{}

func (nopDiag) Printf(string, ...any) {}

func TestKeepURI_ReloadKeepsFlagEndpoint(t *testing.T) {
	c := console.New(console.WithDiagnostics(nopDiag{}))
	c.SetEndpoint("10.0.0.5")

	reload := keepURI("10.0.0.5", c.Apply)
	reload(config.DefaultClientConfig())
	assert.Equal(t, "ws://10.0.0.5:9090", c.Endpoint())

	cfg := config.DefaultClientConfig()
	off := false
	cfg.URI = "wss://other.example"
	cfg.Enabled = &off
	reload(cfg)
	assert.Equal(t, "ws://10.0.0.5:9090", c.Endpoint())
	assert.False(t, c.Enabled())
}

func TestKeepURI_NoFlagUsesConfig(t *testing.T) {
	c := console.New(console.WithDiagnostics(nopDiag{}))
	cfg := config.DefaultClientConfig()
	cfg.URI = "localhost:7000"
	keepURI("", c.Apply)(cfg)
	assert.Equal(t, "ws://localhost:7000", c.Endpoint())
}
