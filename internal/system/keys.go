package system

import "encoding/binary"

const (
	evKey = 0x01

	// Linux input-event-codes.h
	KeyF4  uint16 = 62
	KeyEsc uint16 = 1
)

// keyPressed reports whether buf holds a key-down event for code. buf is a
// run of input_event records of eventSize bytes each, where the event type
// starts at tvSize.
func keyPressed(buf []byte, tvSize, eventSize int, code uint16) bool {
	if eventSize < tvSize+8 {
		return false
	}
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		rec := buf[off : off+eventSize]
		typ := binary.LittleEndian.Uint16(rec[tvSize : tvSize+2])
		c := binary.LittleEndian.Uint16(rec[tvSize+2 : tvSize+4])
		value := int32(binary.LittleEndian.Uint32(rec[tvSize+4 : tvSize+8]))
		if typ == evKey && c == code && value == 1 {
			return true
		}
	}
	return false
}
