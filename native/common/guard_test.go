package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	pauses := StaticPauses{ModuleVesting: true}
	if err := Guard(pauses, ModuleVesting); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(pauses, ModuleMarketplace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, ModuleVesting); err != nil {
		t.Fatalf("nil pause view must not block: %v", err)
	}
	if !pauses.IsPaused(" Vesting ") {
		t.Fatalf("module names should be normalised")
	}
}
