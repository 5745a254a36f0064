package renderclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrNoResult reports a stream that carried no well-formed JSON line.
var ErrNoResult = errors.New("no result line in stream")

// DecodeLastJSON reads a stream of newline-delimited JSON fragments and
// decodes the authoritative final fragment into dst. Blank lines are skipped
// and each well-formed line overwrites the accumulator, so earlier
// incremental fragments are discarded.
func DecodeLastJSON(r io.Reader, dst any) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var last []byte
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		last = append(last[:0], line...)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if last == nil {
		return ErrNoResult
	}
	return json.Unmarshal(last, dst)
}
