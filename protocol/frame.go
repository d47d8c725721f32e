package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNeedMore     = errors.New("incomplete frame")
	ErrBadFrame     = errors.New("malformed frame")
	ErrTooLong      = errors.New("payload too long")
	ErrUnknownOp    = errors.New("unknown bridge op")
	ErrTrailingData = errors.New("trailing payload bytes")
)

// Frame is one decoded block
type Frame struct {
	Seq     uint8
	Payload []byte
}

// EncodeFrame wraps payload in a block with the given sequence byte
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLong, len(payload), PayloadMax)
	}
	n := FrameMin + len(payload)
	out := make([]byte, 0, n)
	out = append(out, byte(n), seq)
	out = append(out, payload...)
	crc := CRC16(out)
	return append(out, byte(crc>>8), byte(crc), SyncByte), nil
}

// ParseFrame decodes the first frame in data and returns the number of bytes
// consumed. With ErrNeedMore the caller keeps the unconsumed bytes and waits
// for more input; with ErrBadFrame it drops consumed bytes and tries again.
// The returned payload aliases data.
func ParseFrame(data []byte) (Frame, int, error) {
	skip := 0
	for skip < len(data) && data[skip] == SyncByte {
		skip++
	}
	data = data[skip:]
	if len(data) < FrameMin {
		return Frame{}, skip, ErrNeedMore
	}

	n := int(data[PositionLen])
	if n < FrameMin || n > FrameMax {
		return Frame{}, skip + resync(data), ErrBadFrame
	}
	if len(data) < n {
		return Frame{}, skip, ErrNeedMore
	}
	if data[n-TrailerSync] != SyncByte {
		return Frame{}, skip + resync(data), ErrBadFrame
	}
	want := uint16(data[n-TrailerCRC])<<8 | uint16(data[n-TrailerCRC+1])
	if got := CRC16(data[:n-TrailerSize]); got != want {
		return Frame{}, skip + n, fmt.Errorf("%w: crc 0x%04x != 0x%04x", ErrBadFrame, got, want)
	}

	return Frame{
		Seq:     data[PositionSeq],
		Payload: data[HeaderSize : n-TrailerSize],
	}, skip + n, nil
}

// resync returns how many bytes to drop to reach the byte after the next sync
func resync(data []byte) int {
	for i, b := range data {
		if b == SyncByte {
			return i + 1
		}
	}
	return len(data)
}

// TxRequest asks the bridge to run one I2C transaction
type TxRequest struct {
	Addr    uint16
	Write   []byte
	ReadLen int
}

// Encode appends the request payload
func (r TxRequest) Encode(out OutputBuffer) {
	EncodeVLQUint(out, OpTx)
	EncodeVLQUint(out, uint32(r.Addr))
	EncodeVLQBytes(out, r.Write)
	EncodeVLQUint(out, uint32(r.ReadLen))
}

// DecodeTxRequest parses a request payload
func DecodeTxRequest(payload []byte) (TxRequest, error) {
	op, err := DecodeVLQUint(&payload)
	if err != nil {
		return TxRequest{}, err
	}
	if op != OpTx {
		return TxRequest{}, fmt.Errorf("%w: %d", ErrUnknownOp, op)
	}
	addr, err := DecodeVLQUint(&payload)
	if err != nil {
		return TxRequest{}, err
	}
	w, err := DecodeVLQBytes(&payload)
	if err != nil {
		return TxRequest{}, err
	}
	rlen, err := DecodeVLQUint(&payload)
	if err != nil {
		return TxRequest{}, err
	}
	if len(payload) != 0 {
		return TxRequest{}, ErrTrailingData
	}
	return TxRequest{Addr: uint16(addr), Write: w, ReadLen: int(rlen)}, nil
}

// TxResponse is the bridge's answer to a TxRequest
type TxResponse struct {
	Status uint32
	Read   []byte
}

// Encode appends the response payload
func (r TxResponse) Encode(out OutputBuffer) {
	EncodeVLQUint(out, r.Status)
	EncodeVLQBytes(out, r.Read)
}

// DecodeTxResponse parses a response payload
func DecodeTxResponse(payload []byte) (TxResponse, error) {
	status, err := DecodeVLQUint(&payload)
	if err != nil {
		return TxResponse{}, err
	}
	r, err := DecodeVLQBytes(&payload)
	if err != nil {
		return TxResponse{}, err
	}
	if len(payload) != 0 {
		return TxResponse{}, ErrTrailingData
	}
	return TxResponse{Status: status, Read: r}, nil
}
