package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

const (
	ModuleMarketplace = "marketplace"
	ModuleArbitrator  = "arbitrator"
	ModuleVesting     = "vesting"
	ModuleIdentity    = "identity"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause set, typically loaded from configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	return s[strings.ToLower(strings.TrimSpace(module))]
}
