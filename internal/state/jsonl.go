package state

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
)

// ReadJSONLines decodes path line by line into values of type T, skipping
// blank lines. A line that fails to decode is passed to onBadLine (if
// non-nil) with its raw bytes and the decode error, and otherwise skipped —
// one corrupt log line must never make the rest of a job's output log
// unreadable (spec.md §9).
func ReadJSONLines[T any](path string, onBadLine func(raw []byte, err error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			if onBadLine != nil {
				cp := make([]byte, len(line))
				copy(cp, line)
				onBadLine(cp, err)
			}
			continue
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return out, &IOError{Op: "scan", Path: path, Err: err}
	}
	return out, nil
}

// AppendJSON marshals v to JSON and appends it as one line to path.
func AppendJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return AppendLine(path, data)
}

// WriteJSON marshals v and atomically replaces the contents of path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return Write(path, data)
}

// ReadJSON decodes path into a value of type T, returning ok=false when
// the file is absent.
func ReadJSON[T any](path string) (T, bool, error) {
	var v T
	data, ok, err := Read(path)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, &IOError{Op: "unmarshal", Path: path, Err: err}
	}
	return v, true, nil
}
