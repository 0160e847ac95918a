package host

import (
	"errors"
	"fmt"
)

// Construction and operational failures. These are reported to the host's
// caller; the instance stays usable unless the error says otherwise.
var (
	ErrInvalidDescriptor = errors.New("invalid core descriptor")
	ErrSetupFailed       = errors.New("core setup failed")
	ErrStartFailed       = errors.New("core failed to start")
	ErrSaveFailed        = errors.New("core failed to write save")
	ErrSaveStateFailed   = errors.New("core failed to write state")
	ErrLoadStateFailed   = errors.New("core failed to load state")
	ErrPlayerRejected    = errors.New("core rejected player connection")
	ErrCheatRejected     = errors.New("core rejected cheat")
	ErrMissingSetting    = errors.New("required setting not supplied")
	ErrChecksumMismatch  = errors.New("setting file checksum mismatch")
	ErrSettingKind       = errors.New("setting value does not match setting kind")
	ErrSettingOption     = errors.New("setting value is not a declared option")
	ErrStaleFrame        = errors.New("video frame is no longer valid")
)

// ErrContractViolation is the root of every caller-contract violation. A
// violation is a host bug; it is caught before the core is called.
var ErrContractViolation = errors.New("core contract violation")

// Specific violation causes.
var (
	ErrInvalidState       = errors.New("operation not valid in current state")
	ErrUnknownSystem      = errors.New("system not supported by core")
	ErrPlayerRange        = errors.New("player index out of range")
	ErrPlayerNotConnected = errors.New("player not connected")
	ErrUnknownCheatFormat = errors.New("unknown cheat format")
	ErrInvalidCheatCode   = errors.New("invalid cheat code")
	ErrUnsupportedFeature = errors.New("feature not advertised by core")
	ErrReentrantCall      = errors.New("overlapping call into core instance")
	ErrBridgeLeaked       = errors.New("core kept bridge references after deallocate")
)

// ViolationError describes a rejected call.
type ViolationError struct {
	Op     Op
	State  State
	Reason error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Op, e.State, e.Reason)
}

// Unwrap exposes both the specific reason and ErrContractViolation to
// errors.Is.
func (e *ViolationError) Unwrap() []error {
	return []error{e.Reason, ErrContractViolation}
}

func violation(op Op, state State, reason error) error {
	return &ViolationError{Op: op, State: state, Reason: reason}
}

// SettingError reports a problem with one setting.
type SettingError struct {
	ID          string
	DisplayName string
	Err         error
}

func (e *SettingError) Error() string {
	name := e.DisplayName
	if name == "" {
		name = e.ID
	}
	return fmt.Sprintf("setting %q (%s): %v", name, e.ID, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}
