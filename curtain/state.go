package curtain

import "sync"

const (
	MinPosition = 0
	MaxPosition = 100
)

// MotionState uses the same numbering as the HomeKit PositionState characteristic.
type MotionState int

const (
	Decreasing MotionState = 0
	Increasing MotionState = 1
	Stopped    MotionState = 2
)

func (ms MotionState) String() string {
	switch ms {
	case Decreasing:
		return "decreasing"
	case Increasing:
		return "increasing"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Complement converts between the open-ness used here and the closed-ness reported by the motor.
func Complement(position int) int {
	return MaxPosition - position
}

func ValidPosition(position int) bool {
	return position >= MinPosition && position <= MaxPosition
}

type Snapshot struct {
	Id       string      `json:"id"`
	Position int         `json:"position"`
	Motion   MotionState `json:"motion"`
}

// State holds the last confirmed position and the current motion of one curtain.
// Only the Controller owning it writes to it.
type State struct {
	id string

	lock     sync.RWMutex
	position int
	motion   MotionState
}

func NewState(id string) *State {
	return &State{
		id:     id,
		motion: Stopped,
	}
}

func (s *State) Id() string {
	return s.id
}

func (s *State) Position() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.position
}

func (s *State) Motion() MotionState {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.motion
}

func (s *State) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return Snapshot{
		Id:       s.id,
		Position: s.position,
		Motion:   s.motion,
	}
}

func (s *State) setPosition(position int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.position = position
}

func (s *State) setMotion(motion MotionState) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.motion = motion
}

// finish records a completed move: the new position and Stopped land together.
func (s *State) finish(position int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.position = position
	s.motion = Stopped
}
