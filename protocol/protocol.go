// Package protocol implements the framing used on the serial link to the
// I2C bridge. Frames follow the Klipper block layout: a length byte, a
// sequence byte, a VLQ encoded payload, a CRC16 and a sync byte.
package protocol

// Version is reported by edm-host version
const Version = "0.2.0"

// Frame layout
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 64
	PayloadMax  = FrameMax - FrameMin

	PositionLen = 0
	PositionSeq = 1
	TrailerCRC  = 3 // offset of the CRC from the end of the frame
	TrailerSync = 1 // offset of the sync byte from the end of the frame

	SyncByte = 0x7E

	// Request sequence numbers run 0x10-0x1F; responses echo them
	SeqDest = 0x10
	SeqMask = 0x0F
)

// Bridge operations
const (
	OpTx uint32 = 1 // I2C write then repeated-start read
)

// Bridge response status codes
const (
	StatusOK      uint32 = 0
	StatusNack    uint32 = 1
	StatusTimeout uint32 = 2
	StatusBadReq  uint32 = 3
)

// NextSeq advances a request sequence number, wrapping within 0x10-0x1F
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}
