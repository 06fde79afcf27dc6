package terminal

// PS/2 set-1 scan codes this kernel cares about by name. Everything else
// decodes through the lookup tables below.
const (
	scEnter     = 0x1C
	scBackspace = 0x0E
	scLShift    = 0x2A
	scRShift    = 0x36
	scLCtrl     = 0x1D
	scCapsLock  = 0x3A
	scF1        = 0x3B
	scF2        = 0x3C
	scF3        = 0x3D
	scC         = 0x2E
	scL         = 0x26
)

// unshifted and shifted map a scan code directly to the ASCII character
// it produces, following the standard US QWERTY set-1 layout. Index 0 is
// unused (no scan code is ever 0); entries left zero are non-printing or
// unmapped.
var unshifted = [0x40]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
	0x0C: '-', 0x0D: '=',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1A: '[', 0x1B: ']',
	0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
	0x27: ';', 0x28: '\'', 0x29: '`',
	0x2B: '\\',
	0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',
	0x33: ',', 0x34: '.', 0x35: '/',
	0x39: ' ',
}

var shifted = [0x40]byte{
	0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
	0x07: '^', 0x08: '&', 0x09: '*', 0x0A: '(', 0x0B: ')',
	0x0C: '_', 0x0D: '+',
	0x10: 'Q', 0x11: 'W', 0x12: 'E', 0x13: 'R', 0x14: 'T',
	0x15: 'Y', 0x16: 'U', 0x17: 'I', 0x18: 'O', 0x19: 'P',
	0x1A: '{', 0x1B: '}',
	0x1E: 'A', 0x1F: 'S', 0x20: 'D', 0x21: 'F', 0x22: 'G',
	0x23: 'H', 0x24: 'J', 0x25: 'K', 0x26: 'L',
	0x27: ':', 0x28: '"', 0x29: '~',
	0x2B: '|',
	0x2C: 'Z', 0x2D: 'X', 0x2E: 'C', 0x2F: 'V', 0x30: 'B',
	0x31: 'N', 0x32: 'M',
	0x33: '<', 0x34: '>', 0x35: '?',
	0x39: ' ',
}

func isLetterCode(sc int) bool {
	switch sc {
	case 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19,
		0x1E, 0x1F, 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26,
		0x2C, 0x2D, 0x2E, 0x2F, 0x30, 0x31, 0x32:
		return true
	}
	return false
}

// decode resolves sc to an ASCII character under the given shift/caps
// state, returning 0 for unmapped or non-printing codes. Caps lock
// inverts case only for letters, matching real keyboard behavior (it
// does not affect digits or punctuation the way shift does).
func decode(sc int, shiftDown bool, capsLock bool) byte {
	if sc < 0 || sc >= len(unshifted) {
		return 0
	}
	useShifted := shiftDown
	if capsLock && isLetterCode(sc) {
		useShifted = !useShifted
	}
	if useShifted {
		return shifted[sc]
	}
	return unshifted[sc]
}
