package rs485

import (
	"errors"
	"testing"
)

func TestNewBankRejectsInvalidConfig(t *testing.T) {
	_, err := NewBank(BankConfig{Host: "127.0.0.1", Port: 8899})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewBank() error = %v, want ErrInvalidConfig", err)
	}
}

func TestBankSwitchIDs(t *testing.T) {
	bank := newTestBank(t, 8899, 1)

	sw, err := bank.NewSwitch(2, "porch", nil)
	if err != nil {
		t.Fatalf("NewSwitch: %v", err)
	}
	if got := sw.ID(); got != "hall-2" {
		t.Errorf("ID() = %q, want %q", got, "hall-2")
	}
	if got := sw.Name(); got != "porch" {
		t.Errorf("Name() = %q, want %q", got, "porch")
	}
	if got := sw.Index(); got != 2 {
		t.Errorf("Index() = %d, want 2", got)
	}
}

func TestBankRejectsOutOfRangeSwitchIndex(t *testing.T) {
	bank := newTestBank(t, 8899, 1)

	for _, index := range []int{0, -1, 7} {
		if _, err := bank.NewSwitch(index, "x", nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewSwitch(%d) error = %v, want ErrInvalidConfig", index, err)
		}
	}
}
