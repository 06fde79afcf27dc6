/*
 * pmkernel - Kernel monitor console reader
 *
 * A liner-backed REPL reading operator commands from the host's own
 * terminal (not a virtual one). ctrl+C aborts the prompt rather than
 * the process, and tab completion is wired to the parser's CompleteCmd.
 */
package reader

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/peterh/liner"

	"pmkernel/command/parser"
)

// ConsoleReader runs the kernel monitor loop until the operator quits.
func ConsoleReader() {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) []string {
		return parser.CompleteCmd(line)
	})

	for {
		command, err := line.Prompt("PMK> ")
		if err == nil {
			line.AppendHistory(command)
			quit, err := parser.ProcessCommand(command)
			if err != nil {
				fmt.Println("Error: " + err.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("error reading line: " + err.Error())
		return
	}
}
