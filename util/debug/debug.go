/*
 * pmkernel - Log debug trace data to a file
 */

package debug

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var logFile *os.File = os.Stderr

var (
	mu      sync.Mutex
	enabled = map[string]bool{}
)

// SetFile redirects debug trace output to a newly created file.
func SetFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file: %s", fileName)
	}
	logFile = file
	return nil
}

// Enable marks component as one the DEBUG config keyword named. A
// kernel package that wants to gate trace output under its own name
// checks Enabled before calling Debugf/DebugPidf.
func Enable(component string) {
	mu.Lock()
	defer mu.Unlock()
	enabled[strings.ToUpper(component)] = true
}

// Enabled reports whether component was named by a DEBUG config line.
func Enabled(component string) bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled[strings.ToUpper(component)]
}

// Debugf writes a component trace message when mask&level is non-zero.
func Debugf(component string, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		fmt.Fprintf(logFile, component+": "+format+"\n", a...)
	}
}

// DebugPidf writes a per-process trace message when mask&level is non-zero.
func DebugPidf(pid int, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		fmt.Fprintf(logFile, fmt.Sprintf("pid %d: ", pid)+format+"\n", a...)
	}
}
