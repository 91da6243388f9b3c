package curtain

import "testing"

func assertInts(t testing.TB, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestNewState(t *testing.T) {
	s := NewState("aa:bb:cc:dd:ee:ff")

	assertInts(t, s.Position(), 0)
	if s.Motion() != Stopped {
		t.Errorf("initial motion got %s want %s", s.Motion(), Stopped)
	}
	if s.Id() != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("id mismatch: %s", s.Id())
	}
}

func TestStateFinish(t *testing.T) {
	s := NewState("x")
	s.setMotion(Increasing)
	s.finish(70)

	snap := s.Snapshot()
	assertInts(t, snap.Position, 70)
	if snap.Motion != Stopped {
		t.Errorf("motion after finish got %s want %s", snap.Motion, Stopped)
	}
}

func TestMotionStateValues(t *testing.T) {
	// HomeKit PositionState numbering
	assertInts(t, int(Decreasing), 0)
	assertInts(t, int(Increasing), 1)
	assertInts(t, int(Stopped), 2)

	if Increasing.String() != "increasing" || MotionState(7).String() != "unknown" {
		t.Error("MotionState String mismatch")
	}
}

func TestComplement(t *testing.T) {
	for p := MinPosition; p <= MaxPosition; p++ {
		assertInts(t, Complement(Complement(p)), p)
	}
	assertInts(t, Complement(30), 70)
}

func TestValidPosition(t *testing.T) {
	if ValidPosition(-1) || ValidPosition(101) {
		t.Error("out of range position accepted")
	}
	if !ValidPosition(0) || !ValidPosition(100) {
		t.Error("boundary position rejected")
	}
}
