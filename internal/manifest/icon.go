package manifest

import (
	"fmt"
	"strings"
)

// Icon names a program icon known to the device menu. The zero value picks
// the question-mark fallback the device shows for unknown icon files.
type Icon string

// Icon names accepted in the manifest.
const (
	IconQuestionMark Icon = "question-mark"
	IconCoolX        Icon = "cool-x"
	IconPizza        Icon = "pizza"
	IconClawbot      Icon = "clawbot"
	IconRobot        Icon = "robot"
	IconPowerButton  Icon = "power-button"
	IconPlanets      Icon = "planets"
	IconAlien        Icon = "alien"
	IconAlienInUFO   Icon = "alien-in-ufo"
	IconCupInField   Icon = "cup-in-field"
	IconCupAndBall   Icon = "cup-and-ball"
	IconCodeFile     Icon = "code-file"
)

// iconCodes maps icon names to the numeric code embedded in the icon file name.
// Code 2 does not exist on the device, which makes it render the fallback
// question mark.
var iconCodes = map[Icon]uint16{
	IconQuestionMark: 2,
	IconCoolX:        1,
	IconPizza:        3,
	IconClawbot:      10,
	IconRobot:        11,
	IconPowerButton:  12,
	IconPlanets:      13,
	IconAlien:        27,
	IconAlienInUFO:   29,
	IconCupInField:   50,
	IconCupAndBall:   51,
	IconCodeFile:     920,
}

// Known reports whether the name maps to a device icon. Matching is
// case-insensitive; the empty name is not known.
func (i Icon) Known() bool {
	_, ok := iconCodes[Icon(strings.ToLower(string(i)))]
	return ok
}

// Code returns the numeric icon code for the name, defaulting to the
// question-mark code for the empty or an unknown name.
func (i Icon) Code() uint16 {
	if code, ok := iconCodes[Icon(strings.ToLower(string(i)))]; ok {
		return code
	}

	return iconCodes[IconQuestionMark]
}

// FileName returns the on-device icon file name for this icon.
func (i Icon) FileName() string {
	return fmt.Sprintf("USER%03dx.bmp", i.Code())
}
