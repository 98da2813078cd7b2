package rs485

import (
	"errors"
	"testing"
)

func TestCoverLifecycle(t *testing.T) {
	type change struct {
		state    string
		position int
	}
	var changes []change

	cover, err := NewCover("study-curtain", "study curtain", func(state string, position int) {
		changes = append(changes, change{state, position})
	})
	if err != nil {
		t.Fatalf("NewCover: %v", err)
	}

	if got := cover.State(); got != CoverStateClosed {
		t.Fatalf("initial state = %q, want closed", got)
	}

	cover.Open()
	if cover.State() != CoverStateOpen || cover.Position() != 100 {
		t.Errorf("after Open: state=%q position=%d", cover.State(), cover.Position())
	}

	cover.SetPosition(40)
	if cover.State() != CoverStateStopped || cover.Position() != 40 {
		t.Errorf("after SetPosition(40): state=%q position=%d", cover.State(), cover.Position())
	}

	cover.Stop()
	if cover.Position() != 40 {
		t.Errorf("Stop moved position to %d", cover.Position())
	}

	cover.Close()
	if cover.State() != CoverStateClosed || cover.Position() != 0 {
		t.Errorf("after Close: state=%q position=%d", cover.State(), cover.Position())
	}

	want := []change{
		{CoverStateOpen, 100},
		{CoverStateStopped, 40},
		{CoverStateClosed, 0},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestCoverSetPositionClamps(t *testing.T) {
	cover, _ := NewCover("c", "c", nil)

	cover.SetPosition(150)
	if cover.Position() != 100 || cover.State() != CoverStateOpen {
		t.Errorf("SetPosition(150): state=%q position=%d", cover.State(), cover.Position())
	}

	cover.SetPosition(-10)
	if cover.Position() != 0 || cover.State() != CoverStateClosed {
		t.Errorf("SetPosition(-10): state=%q position=%d", cover.State(), cover.Position())
	}
}

func TestCoverRequiresID(t *testing.T) {
	if _, err := NewCover("", "nameless", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewCover(\"\") error = %v, want ErrInvalidConfig", err)
	}
}
