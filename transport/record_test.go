package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Run("data record carries seq and payload", func(t *testing.T) {
		in := record{typ: recordData, seq: 7, payload: []byte(`{"type":"create-ticket"}`)}
		out, err := parseRecord(marshalRecord(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("ack record carries seq only", func(t *testing.T) {
		out, err := parseRecord(marshalRecord(record{typ: recordAck, seq: 42}))
		require.NoError(t, err)
		assert.Equal(t, recordAck, out.typ)
		assert.Equal(t, uint32(42), out.seq)
		assert.Empty(t, out.payload)
	})

	t.Run("control records are a single byte", func(t *testing.T) {
		for _, typ := range []recordType{recordConnect, recordConnectAck, recordDisconnect} {
			data := marshalRecord(record{typ: typ})
			assert.Len(t, data, 1)
			out, err := parseRecord(data)
			require.NoError(t, err)
			assert.Equal(t, typ, out.typ)
		}
	})

	t.Run("empty data payload survives", func(t *testing.T) {
		out, err := parseRecord(marshalRecord(record{typ: recordData, seq: 0}))
		require.NoError(t, err)
		assert.Empty(t, out.payload)
	})
}

func TestParseRecordErrors(t *testing.T) {
	t.Run("empty datagram", func(t *testing.T) {
		_, err := parseRecord(nil)
		assert.ErrorIs(t, err, ErrRecordTooShort)
	})

	t.Run("truncated data header", func(t *testing.T) {
		_, err := parseRecord([]byte{byte(recordData), 0, 0})
		assert.ErrorIs(t, err, ErrRecordTooShort)
	})

	t.Run("truncated ack header", func(t *testing.T) {
		_, err := parseRecord([]byte{byte(recordAck), 0})
		assert.ErrorIs(t, err, ErrRecordTooShort)
	})

	t.Run("unknown type byte", func(t *testing.T) {
		_, err := parseRecord([]byte{0xEE})
		assert.ErrorIs(t, err, ErrUnknownRecordType)
	})
}
