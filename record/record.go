// Package record implements the line-oriented codec shared by the WAL and
// the SST files: one logical operation per line, fields separated by a tab,
// the line terminated by a newline.
package record

import (
	"bytes"

	"github.com/pkg/errors"
)

// Op identifies the kind of operation a WAL record carries. SST lines don't
// carry an Op; a tombstone value (Tombstone) stands in for DEL there.
type Op uint8

const (
	OpPut Op = iota + 1
	OpDel
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpDel:
		return "DEL"
	default:
		return "UNKNOWN"
	}
}

// Tombstone is the sentinel value that stands in for a deleted key in an
// SST line, and that a WAL PUT-of-tombstone may carry.
const Tombstone = "__TOMBSTONE__"

// ErrMalformedRecord is returned by Decode* when a line doesn't parse as a
// well-formed record: wrong field count or unknown op.
var ErrMalformedRecord = errors.New("record: malformed")

// ErrInvalidInput is returned when a caller-supplied key or value violates
// the data model: it must be non-empty (keys only) and free of the tab and
// newline bytes used as field delimiters. UTF-8 validity is not checked.
var ErrInvalidInput = errors.New("record: invalid input")

// ValidateKey rejects empty keys and keys carrying a delimiter byte.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return errors.Wrap(ErrInvalidInput, "empty key")
	}
	return validateBytes(key)
}

// ValidateValue rejects values carrying a delimiter byte. Empty values are
// legal (a PUT of the empty string).
func ValidateValue(value []byte) error {
	return validateBytes(value)
}

func validateBytes(b []byte) error {
	if bytes.IndexByte(b, '\t') >= 0 {
		return errors.Wrap(ErrInvalidInput, "contains a tab byte")
	}
	if bytes.IndexByte(b, '\n') >= 0 {
		return errors.Wrap(ErrInvalidInput, "contains a newline byte")
	}
	return nil
}

// WALEntry is one decoded WAL line: an operation, a key, and — for PUT — a
// value.
type WALEntry struct {
	Op    Op
	Key   []byte
	Value []byte
}

// EncodeWAL renders the entry as "OP\tKEY\tVALUE\n". DEL entries carry an
// empty VALUE field.
func EncodeWAL(e WALEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(e.Op.String())
	buf.WriteByte('\t')
	buf.Write(e.Key)
	buf.WriteByte('\t')
	if e.Op == OpPut {
		buf.Write(e.Value)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// DecodeWAL parses a single WAL line, excluding its trailing newline.
// Blank lines are the caller's concern (replay ignores them before calling
// DecodeWAL); an unknown op or wrong field count is ErrMalformedRecord.
func DecodeWAL(line []byte) (WALEntry, error) {
	fields := bytes.SplitN(line, []byte("\t"), 3)
	if len(fields) != 3 {
		return WALEntry{}, errors.Wrapf(ErrMalformedRecord, "expected 3 fields, got %d", len(fields))
	}
	var op Op
	switch string(fields[0]) {
	case "PUT":
		op = OpPut
	case "DEL":
		op = OpDel
	default:
		return WALEntry{}, errors.Wrapf(ErrMalformedRecord, "unknown op %q", fields[0])
	}
	e := WALEntry{Op: op, Key: fields[1]}
	if op == OpPut {
		e.Value = fields[2]
	}
	return e, nil
}

// SSTEntry is one decoded SST line: a key and its value, with IsTombstone
// set when the value slot held the tombstone sentinel.
type SSTEntry struct {
	Key         []byte
	Value       []byte
	IsTombstone bool
}

// EncodeSST renders the entry as "KEY\tVALUE\n".
func EncodeSST(e SSTEntry) []byte {
	var buf bytes.Buffer
	buf.Write(e.Key)
	buf.WriteByte('\t')
	if e.IsTombstone {
		buf.WriteString(Tombstone)
	} else {
		buf.Write(e.Value)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// DecodeSST parses a single SST line, excluding its trailing newline.
func DecodeSST(line []byte) (SSTEntry, error) {
	fields := bytes.SplitN(line, []byte("\t"), 2)
	if len(fields) != 2 {
		return SSTEntry{}, errors.Wrapf(ErrMalformedRecord, "expected 2 fields, got %d", len(fields))
	}
	e := SSTEntry{Key: append([]byte(nil), fields[0]...)}
	if string(fields[1]) == Tombstone {
		e.IsTombstone = true
	} else {
		e.Value = append([]byte(nil), fields[1]...)
	}
	return e, nil
}
