// Package canopen talks to the ZLAC wheel drives over SocketCAN using
// expedited CiA-301 SDO transfers against the CiA-402 object dictionary.
package canopen

import (
	"encoding/binary"
	"fmt"

	"go.einride.tech/can"
)

// Object dictionary entries used by the wheel drives.
const (
	idxErrorCode      uint16 = 0x603F // uint16
	idxVelocityActual uint16 = 0x606C // int32, RPM
	idxTargetTorque   uint16 = 0x6071 // int16, mA
	idxCurrentActual  uint16 = 0x6077 // int16, mA
	idxDCLinkVoltage  uint16 = 0x6079 // uint32, mV
	idxTargetVelocity uint16 = 0x60FF // int32, RPM
)

// SDO COB-ID bases and command specifiers.
const (
	cobRequestBase  uint32 = 0x600
	cobResponseBase uint32 = 0x580

	csUpload byte = 0x40
	csAbort  byte = 0x80
)

// uploadRequest builds an expedited SDO read of index:sub on node.
func uploadRequest(node uint8, index uint16, sub uint8) can.Frame {
	var f can.Frame
	f.ID = cobRequestBase + uint32(node)
	f.Length = 8
	f.Data[0] = csUpload
	binary.LittleEndian.PutUint16(f.Data[1:3], index)
	f.Data[3] = sub
	return f
}

// downloadRequest builds an expedited SDO write of size bytes (1, 2 or 4) to
// index:sub on node. The value is already truncated to size.
func downloadRequest(node uint8, index uint16, sub uint8, value uint32, size int) can.Frame {
	var f can.Frame
	f.ID = cobRequestBase + uint32(node)
	f.Length = 8
	// ccs=1, expedited, size indicated: 0x2F, 0x2B, 0x23 for 1, 2, 4 bytes
	f.Data[0] = 0x23 | byte(4-size)<<2
	binary.LittleEndian.PutUint16(f.Data[1:3], index)
	f.Data[3] = sub
	binary.LittleEndian.PutUint32(f.Data[4:8], value)
	return f
}

// parseResponse validates an SDO response frame already matched to the
// node's response COB-ID and returns the expedited payload (zero for
// download confirmations).
func parseResponse(f can.Frame, node uint8, index uint16, sub uint8) (uint32, error) {
	if got := binary.LittleEndian.Uint16(f.Data[1:3]); got != index || f.Data[3] != sub {
		return 0, fmt.Errorf("sdo: node %d answered for 0x%04X:%d, want 0x%04X:%d",
			node, got, f.Data[3], index, sub)
	}
	if f.Data[0] == csAbort {
		code := binary.LittleEndian.Uint32(f.Data[4:8])
		return 0, fmt.Errorf("sdo: node %d aborted 0x%04X:%d (code 0x%08X)", node, index, sub, code)
	}
	return binary.LittleEndian.Uint32(f.Data[4:8]), nil
}
