package pump

import (
	"errors"
	"fmt"
	"strconv"
)

// CommandKind distinguishes outbound commands.
type CommandKind int

const (
	// CommandSetPower switches the pump to manual mode at a given power.
	CommandSetPower CommandKind = iota
	// CommandSetAuto switches the pump to automatic mode.
	CommandSetAuto
)

// String returns the command name used in logs and metrics.
func (k CommandKind) String() string {
	switch k {
	case CommandSetPower:
		return "set_power"
	case CommandSetAuto:
		return "set_auto"
	default:
		return "unknown"
	}
}

// autoCommand is the literal the firmware expects for automatic mode.
const autoCommand = "AUTO"

// ErrPowerOutOfRange is returned when a power setpoint is outside [0, 255].
var ErrPowerOutOfRange = errors.New("power must be between 0 and 255")

// Command is an operator request sent to the pump.
type Command struct {
	// Kind selects the command.
	Kind CommandKind
	// Power is the requested power for CommandSetPower.
	Power int
}

// SetPower builds a manual power command.
func SetPower(power int) Command {
	return Command{Kind: CommandSetPower, Power: power}
}

// SetAuto builds an automatic mode command.
func SetAuto() Command {
	return Command{Kind: CommandSetAuto}
}

// Validate checks the command locally, before anything is written.
func (c Command) Validate() error {
	if c.Kind == CommandSetPower && (c.Power < MinPower || c.Power > MaxPower) {
		return fmt.Errorf("set power %d: %w", c.Power, ErrPowerOutOfRange)
	}

	return nil
}

// Encode returns the newline-terminated ASCII wire form.
func (c Command) Encode() []byte {
	if c.Kind == CommandSetAuto {
		return []byte(autoCommand + "\n")
	}

	return []byte(strconv.Itoa(c.Power) + "\n")
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Kind == CommandSetAuto {
		return autoCommand
	}

	return fmt.Sprintf("POWER %d", c.Power)
}
