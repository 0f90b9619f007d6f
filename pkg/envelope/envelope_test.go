package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSuccessFlag(t *testing.T) {
	body := []byte(`{"success": true, "files": [{"name": "a.txt", "type": "file"}]}`)
	env, err := DecodeSuccessFlag(body, 0)
	require.NoError(t, err)
	assert.True(t, env.OK)
	assert.Empty(t, env.Error)

	var payload struct {
		Files []map[string]string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "a.txt", payload.Files[0]["name"])
}

func TestDecodeSuccessFlagFailure(t *testing.T) {
	env, err := DecodeSuccessFlag([]byte(`{"success": false, "error": "forbidden"}`), 0)
	require.NoError(t, err)
	assert.False(t, env.OK)
	assert.Equal(t, "forbidden", env.Error)
	assert.Nil(t, env.Payload)

	env, err = DecodeSuccessFlag([]byte(`{"content": "x"}`), 0)
	require.NoError(t, err)
	assert.False(t, env.OK)
	assert.NotEmpty(t, env.Error)
}

func TestDecodeSuccessFlagRejectsNonBoolean(t *testing.T) {
	_, err := DecodeSuccessFlag([]byte(`{"success": "yes"}`), 0)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestDecodeStatusField(t *testing.T) {
	env, err := DecodeStatusField([]byte(`{"status":"ok","action":"info","data":{"php_version":"8.2.1"}}`), 0)
	require.NoError(t, err)
	assert.True(t, env.OK)
	assert.JSONEq(t, `{"php_version":"8.2.1"}`, string(env.Payload))

	env, err = DecodeStatusField([]byte(`{"status":"error","error":"File not allowed","trace":"#0"}`), 0)
	require.NoError(t, err)
	assert.False(t, env.OK)
	assert.Equal(t, "File not allowed", env.Error)
}

func TestDecodeStatusFieldUnknownActionIsFailure(t *testing.T) {
	env, err := DecodeStatusField([]byte(`{"status":"ok","action":"nope","error":"Unknown action"}`), 0)
	require.NoError(t, err)
	assert.False(t, env.OK)
	assert.Equal(t, "Unknown action", env.Error)
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{
		"<html><body>Internal Server Error</body></html>",
		"",
		"null",
		"[1,2,3]",
		`{"success": tru`,
	} {
		for name, decode := range map[string]func([]byte, int) (Envelope, error){
			"success": DecodeSuccessFlag,
			"status":  DecodeStatusField,
		} {
			_, err := decode([]byte(body), 0)
			var decodeErr *DecodeError
			require.Truef(t, errors.As(err, &decodeErr), "%s decoder accepted %q", name, body)
			assert.Equal(t, body, decodeErr.Preview)
		}
	}
}

func TestDecodePreviewIsBounded(t *testing.T) {
	body := []byte("Fatal error: " + strings.Repeat("é", 2000))
	_, err := DecodeStatusField(body, 500)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 500, utf8.RuneCountInString(decodeErr.Preview))
	assert.True(t, strings.HasPrefix(string(body), decodeErr.Preview))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview([]byte("abcdef"), 3))
	assert.Equal(t, "ab", Preview([]byte("ab"), 3))
	assert.Len(t, Preview([]byte(strings.Repeat("x", 900)), 0), DefaultPreviewLimit)
	assert.Equal(t, 2, utf8.RuneCountInString(Preview([]byte{0xff, 0xfe, 0xfd}, 2)))
}
