package utils

import (
	"bufio"
	"strings"
)

// ReadLine reads one line and strips the terminator. A line longer than
// max bytes is returned truncated to max and the rest of it is consumed
// and discarded, so a sender that never writes a newline cannot grow
// memory past the cap.
func ReadLine(reader *bufio.Reader, max int) (string, error) {
	var buf []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if keep := max - len(buf); keep > 0 {
			if len(chunk) > keep {
				chunk = chunk[:keep]
			}
			buf = append(buf, chunk...)
		}
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			if len(buf) == 0 {
				return "", err
			}
			// final line without a terminator
			break
		}
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}
