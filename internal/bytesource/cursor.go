package bytesource

import "fmt"

// Cursor decodes big-endian fields from an in-memory payload with deferred
// error checking: after the first short read every later read returns zero
// and Err reports the failure.
type Cursor struct {
	err  error
	what string
	buf  []byte
	off  int
}

// NewCursor creates a cursor over buf. what names the structure in errors.
func NewCursor(buf []byte, what string) *Cursor {
	return &Cursor{buf: buf, what: what}
}

// Next decodes a value of type T and advances the cursor.
func Next[T Unsigned](c *Cursor, field string) T {
	var zero T
	n := width[T]()
	if !c.need(n, field) {
		return zero
	}
	v := decode[T](c.buf[c.off : c.off+n])
	c.off += n
	return v
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int, field string) []byte {
	if n < 0 {
		c.fail(field, n)
		return nil
	}
	if !c.need(n, field) {
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

// Skip advances n bytes.
func (c *Cursor) Skip(n int, field string) {
	c.Bytes(n, field)
}

// Rest returns every unread byte.
func (c *Cursor) Rest() []byte {
	if c.err != nil {
		return nil
	}
	b := c.buf[c.off:]
	c.off = len(c.buf)
	return b
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

// Offset returns the number of bytes consumed.
func (c *Cursor) Offset() int {
	return c.off
}

// Err returns the first short read, if any.
func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) need(n int, field string) bool {
	if c.err != nil {
		return false
	}
	if n > len(c.buf)-c.off {
		c.fail(field, n)
		return false
	}
	return true
}

func (c *Cursor) fail(field string, n int) {
	c.err = fmt.Errorf("%s: %s needs %d bytes at offset %d, %d left",
		c.what, field, n, c.off, len(c.buf)-c.off)
}
