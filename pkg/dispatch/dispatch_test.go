package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/agenttest"
	"github.com/abshkbh/agentctl/pkg/envelope"
	"github.com/abshkbh/agentctl/pkg/token"
	"github.com/abshkbh/agentctl/pkg/transport"
)

func newFileDispatcher(t *testing.T, agent *agenttest.FileAgent, tokenValue string) *Dispatcher {
	t.Helper()
	tok, err := token.New(token.Files, tokenValue, time.Now())
	require.NoError(t, err)
	d, err := New(Config{
		URL:        agent.Endpoint(),
		Token:      tok,
		Convention: FileAgent,
		Transport:  transport.NewWithClient(agent.Client()),
	})
	require.NoError(t, err)
	return d
}

func newDebugDispatcher(t *testing.T, agent *agenttest.DebugAgent, tokenValue string) *Dispatcher {
	t.Helper()
	tok, err := token.New(token.Debug, tokenValue, time.Now())
	require.NoError(t, err)
	d, err := New(Config{
		URL:          agent.Endpoint(),
		Token:        tok,
		Convention:   DebugAgent,
		Transport:    transport.NewWithClient(agent.Client()),
		PreviewLimit: 40,
	})
	require.NoError(t, err)
	return d
}

func TestNewRejectsForeignToken(t *testing.T) {
	tok, err := token.New(token.Debug, "", time.Now())
	require.NoError(t, err)
	_, err = New(Config{URL: "http://example.invalid", Token: tok, Convention: FileAgent})
	require.ErrorContains(t, err, "cannot be used")
}

func TestDispatchListPreservesOrder(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	defer agent.Close()
	agent.Override("list", http.StatusOK,
		`{"success": true, "files": [{"name": "sub", "type": "directory"}, {"name": "a.txt", "type": "file"}]}`)

	d := newFileDispatcher(t, agent, "t")
	payload, err := d.Dispatch(context.Background(), action.List, map[string]string{"path": "."})
	require.NoError(t, err)

	var body struct {
		Files []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	require.Len(t, body.Files, 2)
	assert.Equal(t, "sub", body.Files[0].Name)
	assert.Equal(t, "a.txt", body.Files[1].Name)
}

func TestDispatchAppError(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	defer agent.Close()
	agent.Override("info", http.StatusOK, `{"success": false, "error": "forbidden"}`)

	d := newFileDispatcher(t, agent, "t")
	payload, err := d.Dispatch(context.Background(), action.Info, nil)
	assert.Nil(t, payload)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "forbidden", appErr.Message)
	assert.Equal(t, action.Info, appErr.Action)
	assert.Equal(t, "app_error", Kind(err))
}

func TestDispatch403IsAuthRejectedEvenWithValidBody(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	defer agent.Close()
	agent.Override("read", http.StatusForbidden, `{"success": true, "content": "secret"}`)

	d := newFileDispatcher(t, agent, "t")
	_, err := d.Dispatch(context.Background(), action.Read, map[string]string{"path": "x"})
	require.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, "auth_rejected", Kind(err))
}

func TestDispatchWrongTokenIsAuthRejected(t *testing.T) {
	agent := agenttest.NewDebugAgent("debug-right")
	defer agent.Close()

	d := newDebugDispatcher(t, agent, "debug-wrong")
	_, err := d.Dispatch(context.Background(), action.Info, nil)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, Describe(err), "debug-wrong")
}

func TestFileAgentWrongTokenIs401AppError(t *testing.T) {
	agent := agenttest.NewFileAgent("agent-right")
	defer agent.Close()

	d := newFileDispatcher(t, agent, "agent-wrong")
	payload, err := d.Dispatch(context.Background(), action.Read, map[string]string{"path": "x"})
	assert.Nil(t, payload)

	assert.False(t, errors.Is(err, ErrAuthRejected))
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Invalid token", appErr.Message)
	assert.Equal(t, "app_error", Kind(err))
	assert.Equal(t, []string{"read"}, agent.Calls())
}

func TestFileAgentFailureStatusIsDecoded(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	defer agent.Close()

	d := newFileDispatcher(t, agent, "t")
	_, err := d.Dispatch(context.Background(), action.Read, map[string]string{"path": "missing.txt"})

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "File not found", appErr.Message)
}

func TestDispatchDecodeFailureKeepsBoundedPreview(t *testing.T) {
	agent := agenttest.NewDebugAgent("t")
	defer agent.Close()
	agent.Override("info", http.StatusInternalServerError, "<b>Fatal error</b>: "+strings.Repeat("x", 1000))

	d := newDebugDispatcher(t, agent, "t")
	_, err := d.Dispatch(context.Background(), action.Info, nil)

	var decodeErr *envelope.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, http.StatusInternalServerError, decodeErr.StatusCode)
	assert.LessOrEqual(t, utf8.RuneCountInString(decodeErr.Preview), 40)
	assert.True(t, strings.HasPrefix(decodeErr.Preview, "<b>Fatal error</b>"))
	assert.Equal(t, "decode_failure", Kind(err))
}

func TestDispatchTransportFailure(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	d := newFileDispatcher(t, agent, "t")
	agent.Close()

	_, err := d.Dispatch(context.Background(), action.Info, nil)
	var transportErr *transport.Error
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "transport_failure", Kind(err))
}

func TestDispatchDebugConvention(t *testing.T) {
	agent := agenttest.NewDebugAgent("t")
	defer agent.Close()
	agent.Respond("test_db", map[string]any{"connected": true, "message": "Database connection successful"})
	agent.Respond("check_files", map[string]any{".htaccess": false})

	d := newDebugDispatcher(t, agent, "t")
	payload, err := d.Dispatch(context.Background(), action.TestDB, map[string]string{
		"host": "localhost", "name": "cms", "user": "u", "pass": "p",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"connected": true, "message": "Database connection successful"}`, string(payload))

	_, err = d.Dispatch(context.Background(), action.CheckFiles, nil)
	require.NoError(t, err)

	forms := agent.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, map[string]string{"host": "localhost", "name": "cms", "user": "u", "pass": "p"}, forms[0])
	assert.Equal(t, []string{"test_db", "check_files"}, agent.Calls())
}

func TestDispatchRefusesDestructiveWithoutConfirmation(t *testing.T) {
	agent := agenttest.NewDebugAgent("t")
	defer agent.Close()
	agent.Respond("self_destruct", map[string]any{"message": "Agent deleted"})

	d := newDebugDispatcher(t, agent, "t")
	_, err := d.Dispatch(context.Background(), action.SelfDestruct, nil)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, agent.Calls())

	_, err = d.DispatchConfirmed(context.Background(), action.SelfDestruct, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"self_destruct"}, agent.Calls())
}

func TestDispatchValidatesLocally(t *testing.T) {
	agent := agenttest.NewFileAgent("t")
	defer agent.Close()

	d := newFileDispatcher(t, agent, "t")
	_, err := d.Dispatch(context.Background(), action.Write, map[string]string{"path": "a"})
	require.Error(t, err)
	_, err = d.Dispatch(context.Background(), action.CheckErrors, nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_request", Kind(err))
	assert.Empty(t, agent.Calls())
}
