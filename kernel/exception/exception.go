/*
 * pmkernel - CPU exception handlers
 *
 * Vectors 0-19 all funnel through one handler: log the exception's name
 * against the faulting terminal and kill its foreground process with
 * status 256. Two quirks from the original hardware behavior are
 * deliberately preserved rather than "fixed": a double fault does not
 * terminate the process (a real double fault means the kernel itself is
 * in trouble, not something a user process recovers from), and the
 * stack-segment-fault message is reported as "Invalid TSS", matching
 * the exception table this kernel has always shipped with.
 */
package exception

import (
	"log/slog"

	"pmkernel/kernel/idt"
	"pmkernel/kernel/process"
	"pmkernel/util/debug"
)

// traceComponent is the DEBUG config keyword name that turns on a
// per-exception trace line in addition to the always-on slog.Error.
const traceComponent = "EXCEPTION"

// names holds vector 0-19's display name, in the order x86 defines them.
var names = [idt.ExceptionCount]string{
	0:  "Divide Error",
	1:  "Debug Exception",
	2:  "NMI Interrupt",
	3:  "Breakpoint",
	4:  "Overflow",
	5:  "BOUND Range Exceeded",
	6:  "Invalid Opcode",
	7:  "Device Not Available",
	8:  "Double Fault",
	9:  "Coprocessor Segment Overrun",
	10: "Invalid TSS", // vector 12 below shares this string
	11: "Segment Not Present",
	12: "Invalid TSS",
	13: "General Protection",
	14: "Page Fault",
	15: "Reserved",
	16: "x87 FPU Floating-Point Error",
	17: "Alignment Check",
	18: "Machine Check",
	19: "SIMD Floating-Point Exception",
}

const (
	vectorDoubleFault       = 8
	vectorStackSegmentFault = 12
)

// Install registers every exception vector's handler. Call once during
// boot, after idt.Install has a table to write into.
func Install() {
	for v := 0; v < idt.ExceptionCount; v++ {
		vec := v
		idt.Install(vec, handle)
	}
}

func handle(frame *idt.Frame) {
	name := names[frame.Vector]
	slog.Error("cpu exception", "vector", frame.Vector, "name", name, "pid", frame.Pid)
	if debug.Enabled(traceComponent) {
		debug.DebugPidf(frame.Pid, 1, 1, "vector %d (%s) on terminal %d", frame.Vector, name, frame.Terminal)
	}

	if frame.Vector == vectorDoubleFault {
		// A double fault means kernel state is suspect, not that the
		// current user process is at fault; it does not halt anything.
		return
	}

	process.KillCurrentProc(frame.Terminal, 256)
}
