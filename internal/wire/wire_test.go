package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 123456789)
	cases := []struct {
		gen     uint64
		payload []byte
	}{
		{0, nil},
		{42, []byte("hello")},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := EncodeRecord(tc.gen, now, tc.payload)
		rec, err := DecodeRecord(enc)
		require.NoError(t, err)
		require.Equal(t, tc.gen, rec.Gen)
		require.True(t, rec.StoredAt.Equal(now), "storedAt mismatch: %v", rec.StoredAt)
		require.True(t, bytes.Equal(rec.Payload, tc.payload), "payload %x want %x", rec.Payload, tc.payload)
	}
}

func TestRecordRejectsTrailingBytes(t *testing.T) {
	enc := EncodeRecord(7, time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	_, err := DecodeRecord(enc)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestRecordCorruptHeaders(t *testing.T) {
	good := EncodeRecord(1, time.Now(), []byte("abc"))

	t.Run("short", func(t *testing.T) {
		_, err := DecodeRecord(good[:headerLen-1])
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad magic", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[0] = 'X'
		_, err := DecodeRecord(b)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad version", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[4] = 99
		_, err := DecodeRecord(b)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad kind", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[5] = 2
		_, err := DecodeRecord(b)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("length past end", func(t *testing.T) {
		b := append([]byte(nil), good...)
		binary.BigEndian.PutUint32(b[headerLen-4:headerLen], 1000)
		_, err := DecodeRecord(b)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("foreign bytes", func(t *testing.T) {
		_, err := DecodeRecord([]byte("not-a-record-at-all-not-a-record"))
		require.ErrorIs(t, err, ErrCorrupt)
	})
}
