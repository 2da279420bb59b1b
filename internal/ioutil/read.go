package ioutil

import (
	"fmt"
	"io"
)

// ErrTooLarge is returned by ReadAtMost when the input exceeds the limit.
type ErrTooLarge struct {
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("body exceeds %d bytes", e.Limit)
}

// ReadLimited reads up to limit bytes from r for error messages and logs.
// A read failure is described in the returned string.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// ReadAtMost reads all of r, failing with *ErrTooLarge instead of
// truncating when r holds more than limit bytes.
func ReadAtMost(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, &ErrTooLarge{Limit: limit}
	}
	return body, nil
}
