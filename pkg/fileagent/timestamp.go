package fileagent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// legacyTimeLayout is how older agents format modification times.
const legacyTimeLayout = "2006-01-02 15:04:05"

// Timestamp is a modification time sent either as Unix seconds or as a
// legacyTimeLayout string. The zero value means the agent sent nothing.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.ParseInLocation(legacyTimeLayout, s, time.Local)
		if err != nil {
			return fmt.Errorf("invalid modification time %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	var secs json.Number
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	n, err := secs.Int64()
	if err != nil {
		f, ferr := secs.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid modification time %s: %w", secs, err)
		}
		n = int64(f)
	}
	t.Time = time.Unix(n, 0)
	return nil
}
