package drivers

import (
	"testing"

	"github.com/go-ble/ble/linux/hci"
)

func TestRandomAddr(t *testing.T) {
	addr := randomAddr("E4:AA:BB:CC:DD:EE")

	if _, isRandom := addr.(hci.RandomAddress); !isRandom {
		t.Errorf("expected a random address, got %T", addr)
	}
	if addr.String() != "e4:aa:bb:cc:dd:ee" {
		t.Errorf("address mismatch: %s", addr)
	}
}
