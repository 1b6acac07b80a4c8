package uploader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// otherInstance reports another running venice process, which is the usual
// reason the port cannot be opened. Best effort: enumeration failures just
// mean no diagnosis.
func otherInstance() (int, bool) {
	processes, err := ps.Processes()
	if err != nil {
		return 0, false
	}

	self := os.Getpid()
	name := executableName()

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if strings.TrimSuffix(process.Executable(), ".exe") == name {
			return process.Pid(), true
		}
	}

	return 0, false
}

func executableName() string {
	path, err := os.Executable()
	if err != nil {
		return "venice"
	}

	return strings.TrimSuffix(filepath.Base(path), ".exe")
}
