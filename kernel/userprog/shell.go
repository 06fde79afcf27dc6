/*
 * pmkernel - Built-in user programs
 *
 * The shell and a handful of small test programs, each registered
 * against kernel/process's program table. These stand in for the
 * user-mode executables a real image-loading kernel would read off
 * disk; they are still ordinary processes as far as kernel/process and
 * kernel/syscall are concerned -- same fd table, same paging, same
 * halt/kill path.
 */
package userprog

import (
	"fmt"

	"pmkernel/kernel/process"
	"pmkernel/kernel/syscall"
)

func init() {
	process.RegisterProgram("shell", shellMain)
	process.RegisterProgram("hello", helloMain)
	process.RegisterProgram("counter", counterMain)
}

const prompt = "391OS> "

func shellMain(p *process.Process) int32 {
	for {
		syscall.Write(p, 1, []byte(prompt), len(prompt))

		line := make([]byte, 128)
		n := readLine(p, line)
		cmd := string(line[:n])
		cmd = trimTrailingNewline(cmd)
		if cmd == "" {
			continue
		}
		if cmd == "exit" {
			return 0
		}
		_ = syscall.Execute(p, cmd)
	}
}

func readLine(p *process.Process, buf []byte) int {
	for {
		n := syscall.Read(p, 0, buf, len(buf))
		if n > 0 {
			return int(n)
		}
	}
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}

func helloMain(p *process.Process) int32 {
	msg := []byte("hello world\n")
	syscall.Write(p, 1, msg, len(msg))
	return 0
}

func counterMain(p *process.Process) int32 {
	for i := 0; i < 10; i++ {
		line := fmt.Sprintf("%d\n", i)
		syscall.Write(p, 1, []byte(line), len(line))
	}
	return 0
}
