package ekcore

import "strings"

// Input is a bitmask of digital signals for one player. Analog axes such as
// touch and gyro are reduced to directional bits; magnitudes are not carried.
type Input uint32

const (
	InputNone            Input = 0
	InputFaceUp          Input = 1 << 0
	InputFaceDown        Input = 1 << 1
	InputFaceLeft        Input = 1 << 2
	InputFaceRight       Input = 1 << 3
	InputStart           Input = 1 << 4
	InputSelect          Input = 1 << 5
	InputShoulderLeft    Input = 1 << 6
	InputShoulderRight   Input = 1 << 7
	InputTriggerLeft     Input = 1 << 8
	InputTriggerRight    Input = 1 << 9
	InputDpadUp          Input = 1 << 10
	InputDpadDown        Input = 1 << 11
	InputDpadLeft        Input = 1 << 12
	InputDpadRight       Input = 1 << 13
	InputLeftStickUp     Input = 1 << 14
	InputLeftStickDown   Input = 1 << 15
	InputLeftStickLeft   Input = 1 << 16
	InputLeftStickRight  Input = 1 << 17
	InputRightStickUp    Input = 1 << 18
	InputRightStickDown  Input = 1 << 19
	InputRightStickLeft  Input = 1 << 20
	InputRightStickRight Input = 1 << 21
	InputTouchPosX       Input = 1 << 22
	InputTouchNegX       Input = 1 << 23
	InputTouchPosY       Input = 1 << 24
	InputTouchNegY       Input = 1 << 25
	InputLid             Input = 1 << 26
	InputMic             Input = 1 << 27
	InputGyroX           Input = 1 << 28
	InputGyroY           Input = 1 << 29
	InputGyroZ           Input = 1 << 30
)

// InputMask covers every defined input bit.
const InputMask Input = 1<<31 - 1

var inputNames = []string{
	"FaceUp", "FaceDown", "FaceLeft", "FaceRight",
	"Start", "Select",
	"ShoulderLeft", "ShoulderRight", "TriggerLeft", "TriggerRight",
	"DpadUp", "DpadDown", "DpadLeft", "DpadRight",
	"LeftStickUp", "LeftStickDown", "LeftStickLeft", "LeftStickRight",
	"RightStickUp", "RightStickDown", "RightStickLeft", "RightStickRight",
	"TouchPosX", "TouchNegX", "TouchPosY", "TouchNegY",
	"Lid", "Mic",
	"GyroX", "GyroY", "GyroZ",
}

// Has reports whether all bits of other are set.
func (in Input) Has(other Input) bool {
	return in&other == other
}

// String lists the set bits joined by "|".
func (in Input) String() string {
	if in == InputNone {
		return "None"
	}
	var parts []string
	for i, name := range inputNames {
		if in&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	if in&^InputMask != 0 {
		parts = append(parts, "?")
	}
	return strings.Join(parts, "|")
}

// ParseInput returns the input bit with the given name.
func ParseInput(name string) (Input, bool) {
	for i, n := range inputNames {
		if strings.EqualFold(n, name) {
			return 1 << uint(i), true
		}
	}
	return InputNone, false
}
