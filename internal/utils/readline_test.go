package utils

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("one\r\ntwo\nthree"), 16)

	line, err := ReadLine(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "one", line)

	line, err = ReadLine(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "two", line)

	// final line without terminator
	line, err = ReadLine(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "three", line)

	_, err = ReadLine(r, 64)
	assert.Error(t, err)
}

func TestReadLineTruncatesOverlongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	r := bufio.NewReaderSize(strings.NewReader(long+"\nnext\n"), 1024)

	line, err := ReadLine(r, 1024)
	require.NoError(t, err)
	assert.Len(t, line, 1024, "oversized lines are capped, not accumulated")

	// the remainder of the oversized line is consumed, not re-read
	line, err = ReadLine(r, 1024)
	require.NoError(t, err)
	assert.Equal(t, "next", line)
}

func TestReadLineBoundedWithoutNewline(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader(strings.Repeat("y", 4096)), 64)

	line, err := ReadLine(r, 128)
	require.NoError(t, err)
	assert.Len(t, line, 128)

	_, err = ReadLine(r, 128)
	assert.Error(t, err, "stream is fully drained")
}
