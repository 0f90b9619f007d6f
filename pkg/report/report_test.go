package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterPlainOutputWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	r := NewWithOutput(&buf)

	r.Success("wrote %d bytes", 12)
	r.Error("read failed: %s", "File not found")
	r.Warn("careful")
	r.Indented("  [error] boom")

	assert.Equal(t,
		"✓ wrote 12 bytes\n✗ read failed: File not found\n! careful\n    [error] boom\n",
		buf.String())
}

func TestBytesClampsNegativeSizes(t *testing.T) {
	assert.Equal(t, "0 B", Bytes(-1))
	assert.Equal(t, "0 B", Bytes(0))
	assert.Equal(t, "1.5 kB", Bytes(1500))
}
