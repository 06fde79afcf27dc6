/*
 * pmkernel - Cascaded 8259 PIC driver
 *
 * Two chained controllers, mask/unmask per IRQ line, and end-of-interrupt
 * acknowledgement, driven entirely through kernel/ioport at the legacy
 * port numbers and initialization-control-word sequence.
 */
package pic

import "pmkernel/kernel/ioport"

const (
	masterCommand uint16 = 0x20
	masterData    uint16 = 0x21
	slaveCommand  uint16 = 0xA0
	slaveData     uint16 = 0xA1

	icw1Init     uint8 = 0x11
	masterOffset uint8 = 0x20
	slaveOffset  uint8 = 0x28
	masterCascad uint8 = 0x04 // slave attached on IRQ2
	slaveCascade uint8 = 0x02
	icw4Mode     uint8 = 0x01

	eoiBase uint8 = 0x60
)

var (
	masterMask uint8 = 0xFF
	slaveMask  uint8 = 0xFF
)

// Init programs both controllers with the documented four-word init
// sequence and masks every line until a driver explicitly unmasks it.
func Init() {
	ioport.Out8(masterCommand, icw1Init)
	ioport.Out8(slaveCommand, icw1Init)

	ioport.Out8(masterData, masterOffset)
	ioport.Out8(slaveData, slaveOffset)

	ioport.Out8(masterData, masterCascad)
	ioport.Out8(slaveData, slaveCascade)

	ioport.Out8(masterData, icw4Mode)
	ioport.Out8(slaveData, icw4Mode)

	masterMask = 0xFF
	slaveMask = 0xFF
	ioport.Out8(masterData, masterMask)
	ioport.Out8(slaveData, slaveMask)
}

// Mask disables delivery of irq.
func Mask(irq int) {
	if irq < 8 {
		masterMask |= 1 << uint(irq)
		ioport.Out8(masterData, masterMask)
		return
	}
	slaveMask |= 1 << uint(irq-8)
	ioport.Out8(slaveData, slaveMask)
}

// Unmask enables delivery of irq.
func Unmask(irq int) {
	if irq < 8 {
		masterMask &^= 1 << uint(irq)
		ioport.Out8(masterData, masterMask)
		return
	}
	slaveMask &^= 1 << uint(irq-8)
	ioport.Out8(slaveData, slaveMask)
}

// SendEOI acknowledges irq, notifying the slave controller first when the
// interrupt came from a slave line.
func SendEOI(irq int) {
	if irq >= 8 {
		ioport.Out8(slaveCommand, eoiBase|uint8(irq-8))
	}
	ioport.Out8(masterCommand, eoiBase|uint8(irq&0x07))
}
