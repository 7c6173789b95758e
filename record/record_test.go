package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWALRoundTrip(t *testing.T) {
	e := WALEntry{Op: OpPut, Key: []byte("a"), Value: []byte("1")}
	line := EncodeWAL(e)
	require.Equal(t, "PUT\ta\t1\n", string(line))

	got, err := DecodeWAL(line[:len(line)-1])
	require.NoError(t, err)
	require.Equal(t, e.Op, got.Op)
	require.Equal(t, e.Key, got.Key)
	require.Equal(t, e.Value, got.Value)
}

func TestWALDeleteHasEmptyValue(t *testing.T) {
	e := WALEntry{Op: OpDel, Key: []byte("a")}
	line := EncodeWAL(e)
	require.Equal(t, "DEL\ta\t\n", string(line))

	got, err := DecodeWAL(line[:len(line)-1])
	require.NoError(t, err)
	require.Equal(t, OpDel, got.Op)
	require.Empty(t, got.Value)
}

func TestDecodeWALRejectsWrongFieldCount(t *testing.T) {
	_, err := DecodeWAL([]byte("PUT\ta"))
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecodeWALRejectsUnknownOp(t *testing.T) {
	_, err := DecodeWAL([]byte("XXX\ta\tb"))
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSSTRoundTrip(t *testing.T) {
	e := SSTEntry{Key: []byte("k"), Value: []byte("v")}
	line := EncodeSST(e)
	require.Equal(t, "k\tv\n", string(line))

	got, err := DecodeSST(line[:len(line)-1])
	require.NoError(t, err)
	require.Equal(t, e.Key, got.Key)
	require.Equal(t, e.Value, got.Value)
	require.False(t, got.IsTombstone)
}

func TestSSTTombstone(t *testing.T) {
	e := SSTEntry{Key: []byte("k"), IsTombstone: true}
	line := EncodeSST(e)
	require.Equal(t, "k\t"+Tombstone+"\n", string(line))

	got, err := DecodeSST(line[:len(line)-1])
	require.NoError(t, err)
	require.True(t, got.IsTombstone)
	require.Empty(t, got.Value)
}

func TestValidateKeyRejectsReservedBytes(t *testing.T) {
	require.ErrorIs(t, ValidateKey([]byte("has\ttab")), ErrInvalidInput)
	require.ErrorIs(t, ValidateKey([]byte("has\nnewline")), ErrInvalidInput)
	require.ErrorIs(t, ValidateKey(nil), ErrInvalidInput)
}

func TestValidateValueAllowsEmpty(t *testing.T) {
	require.NoError(t, ValidateValue(nil))
	require.NoError(t, ValidateValue([]byte("")))
}
