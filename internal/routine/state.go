package routine

import "fmt"

// State is a routine's lifecycle state.
type State uint8

const (
	Idle State = iota
	Paused
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Paused:
		return "paused"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Compensation selects how Resume reconciles the time a routine spent paused.
type Compensation uint8

const (
	// CompensateWait only compensates routines paused in the middle of a
	// Delay: the remaining part of the delay is waited out after Resume.
	CompensateWait Compensation = iota
	// CompensateUniform compensates every resumed routine. Interrupted delays
	// behave as with CompensateWait; other routines wait as long as they
	// were paused before advancing again.
	CompensateUniform
)

func (c Compensation) String() string {
	switch c {
	case CompensateWait:
		return "wait"
	case CompensateUniform:
		return "uniform"
	default:
		return fmt.Sprintf("compensation(%d)", uint8(c))
	}
}

// ParseCompensation maps a config value. Empty means CompensateWait.
func ParseCompensation(raw string) (Compensation, error) {
	switch raw {
	case "", "wait":
		return CompensateWait, nil
	case "uniform":
		return CompensateUniform, nil
	default:
		return 0, fmt.Errorf("%w: unknown pause compensation %q (use wait or uniform)", ErrInvalidArgument, raw)
	}
}
