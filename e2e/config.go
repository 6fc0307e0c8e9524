package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_TYPING_IDLE shrinks the typing idle window so expiry scenarios
	// run in milliseconds instead of seconds.
	TypingIdle string `envconfig:"E2E_TYPING_IDLE" default:"100ms"`
	// E2E_DEBUG_FRAMES dumps every websocket frame both ways
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
