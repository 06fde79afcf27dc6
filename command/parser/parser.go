/*
 * pmkernel - Kernel monitor command parser
 *
 * A fixed table of monitor commands (ps, ls, switch, kill, help, quit),
 * matched by case-insensitive name and dispatched to a handler.
 */
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pmkernel/kernel/fs"
	"pmkernel/kernel/process"
	"pmkernel/kernel/terminal"
)

type cmd struct {
	name string
	help string
	run  func(args []string) error
}

var commands []cmd

func init() {
	commands = []cmd{
		{"ps", "list running processes", cmdPS},
		{"ls", "list files on the mounted filesystem", cmdLS},
		{"switch", "switch <n>: make terminal n visible", cmdSwitch},
		{"kill", "kill <n>: halt terminal n's foreground process", cmdKill},
		{"help", "list monitor commands", cmdHelp},
	}
}

// ProcessCommand parses and runs one monitor command line. It reports
// quit=true when the line was "quit" or "exit".
func ProcessCommand(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	if name == "quit" || name == "exit" {
		return true, nil
	}

	for _, c := range commands {
		if c.name == name {
			return false, c.run(args)
		}
	}
	return false, errors.New("unknown command: " + name)
}

// CompleteCmd returns every monitor command name prefixed by line, for
// liner's tab-completion hook.
func CompleteCmd(line string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c.name, strings.ToLower(line)) {
			out = append(out, c.name)
		}
	}
	return out
}

func cmdHelp(args []string) error {
	for _, c := range commands {
		fmt.Printf("%-10s %s\n", c.name, c.help)
	}
	fmt.Println("quit/exit  leave the monitor")
	return nil
}

func cmdPS(args []string) error {
	for t := 0; t < 3; t++ {
		pid := process.ForegroundPid(t)
		fmt.Printf("terminal %d: foreground pid %d\n", t, pid)
	}
	return nil
}

func cmdLS(args []string) error {
	img := fs.Mounted()
	if img == nil {
		return errors.New("no filesystem mounted")
	}
	for i := 0; i < img.NumDentries(); i++ {
		dent, err := img.ReadDentryByIndex(i)
		if err != nil {
			continue
		}
		fmt.Printf("%-32s type %d inode %d\n", dent.Name, dent.Type, dent.Inode)
	}
	return nil
}

func cmdSwitch(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: switch <terminal>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	terminal.SwitchVisible(n)
	return nil
}

func cmdKill(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: kill <terminal>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	process.KillCurrentProc(n, 0)
	return nil
}
