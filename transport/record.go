package transport

import (
	"encoding/binary"
	"errors"
)

// Record types, one byte on the wire ahead of the body.
type recordType byte

const (
	recordConnect recordType = iota + 1
	recordConnectAck
	recordData
	recordAck
	recordDisconnect
)

var (
	ErrRecordTooShort    = errors.New("record too short")
	ErrUnknownRecordType = errors.New("unknown record type")
)

const dataHeaderSize = 5 // type byte + uint32 sequence number

// record is one parsed datagram. seq is meaningful for data and ack records
// only; payload for data records only.
type record struct {
	typ     recordType
	seq     uint32
	payload []byte
}

func marshalRecord(r record) []byte {
	switch r.typ {
	case recordData:
		buf := make([]byte, dataHeaderSize+len(r.payload))
		buf[0] = byte(r.typ)
		binary.BigEndian.PutUint32(buf[1:dataHeaderSize], r.seq)
		copy(buf[dataHeaderSize:], r.payload)
		return buf
	case recordAck:
		buf := make([]byte, dataHeaderSize)
		buf[0] = byte(r.typ)
		binary.BigEndian.PutUint32(buf[1:dataHeaderSize], r.seq)
		return buf
	default:
		return []byte{byte(r.typ)}
	}
}

func parseRecord(data []byte) (record, error) {
	if len(data) == 0 {
		return record{}, ErrRecordTooShort
	}

	r := record{typ: recordType(data[0])}
	switch r.typ {
	case recordConnect, recordConnectAck, recordDisconnect:
		return r, nil
	case recordData:
		if len(data) < dataHeaderSize {
			return record{}, ErrRecordTooShort
		}
		r.seq = binary.BigEndian.Uint32(data[1:dataHeaderSize])
		r.payload = data[dataHeaderSize:]
		return r, nil
	case recordAck:
		if len(data) < dataHeaderSize {
			return record{}, ErrRecordTooShort
		}
		r.seq = binary.BigEndian.Uint32(data[1:dataHeaderSize])
		return r, nil
	default:
		return record{}, ErrUnknownRecordType
	}
}
