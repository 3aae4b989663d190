package ordkv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOverflow is returned when a MultiTable key has used up its index space.
	ErrOverflow = errors.New("key space overflow")

	// ErrClosed is returned by operations on a table that is not open.
	ErrClosed = errors.New("table is not open")
)

// DataError reports stored bytes that cannot be decoded: truncated,
// malformed, or written with an incompatible layout.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// IsDecodeError reports whether err was caused by undecodable stored data.
func IsDecodeError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// OpenError is returned when the underlying store cannot be opened or created.
type OpenError struct {
	Backend Backend
	Path    string
	Err     error
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("ordkv: open %s store %s: %v", e.Backend, e.Path, e.Err)
}

// StoreError wraps an I/O failure reported by the underlying store.
type StoreError struct {
	Op   string
	Path string
	Key  []byte
	Err  error
}

func storeErr(op, path string, key []byte, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{op, path, cloneBytes(key), err}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("ordkv: %s %s [%s]: %v", e.Op, e.Path, hexstr(e.Key), e.Err)
	}
	return fmt.Sprintf("ordkv: %s %s: %v", e.Op, e.Path, e.Err)
}

// TableError carries the table name and the offending key of a failed
// operation.
type TableError struct {
	Table string
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(table string, key []byte, err error, format string, args ...any) error {
	return &TableError{table, cloneBytes(key), fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
