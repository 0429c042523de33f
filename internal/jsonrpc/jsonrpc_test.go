package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	proberrors "github.com/wagiedev/gdbprobe/internal/errors"
)

func TestEncodeRequest(t *testing.T) {
	req := NewRequestWithID(1, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
	})

	data, err := Encode(req)
	require.NoError(t, err)

	require.Equal(t, byte('\n'), data[len(data)-1])
	require.NotContains(t, string(data[:len(data)-1]), "\n")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "2.0", decoded["jsonrpc"])
	require.Equal(t, float64(1), decoded["id"])
	require.Equal(t, "initialize", decoded["method"])
}

func TestEncodeNotificationOmitsID(t *testing.T) {
	n := NewNotification("notifications/initialized", nil)

	data, err := Encode(n)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotContains(t, decoded, "id")
	require.NotContains(t, decoded, "params")
}

func TestNewRequestAssignsDistinctIDs(t *testing.T) {
	a := NewRequest("tools/call", nil)
	b := NewRequest("tools/call", nil)

	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
}

func TestDecodeLineSkipsNonProtocolLines(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"GLib-DEBUG: session manager ready",
		"[stdout noise] starting up",
		"null",
	} {
		resp, ok, err := DecodeLine([]byte(line))
		require.NoError(t, err, "line %q", line)
		require.False(t, ok, "line %q", line)
		require.Nil(t, resp, "line %q", line)
	}
}

func TestDecodeLineParsesResponse(t *testing.T) {
	line := `  {"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"ok"}]}}`

	resp, ok, err := DecodeLine([]byte(line))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, resp.HasResult())
	require.Empty(t, resp.ErrorMessage())
	require.True(t, resp.IDEquals(2))
}

func TestDecodeLineMalformedJSON(t *testing.T) {
	resp, ok, err := DecodeLine([]byte(`{"jsonrpc":"2.0","id":`))
	require.Nil(t, resp)
	require.False(t, ok)

	var malformed *proberrors.MalformedMessageError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, `{"jsonrpc":"2.0","id":`, malformed.RawLine)
}

func TestDecodeLineErrorPayload(t *testing.T) {
	line := `{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"Invalid session ID"}}`

	resp, ok, err := DecodeLine([]byte(line))
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, resp.HasResult())
	require.Equal(t, "Invalid session ID", resp.ErrorMessage())
}

func TestIDEquals(t *testing.T) {
	resp := &Response{ID: float64(7)}
	require.True(t, resp.IDEquals(7))
	require.True(t, resp.IDEquals(int64(7)))
	require.False(t, resp.IDEquals(8))

	strResp := &Response{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"}
	require.True(t, strResp.IDEquals("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	require.False(t, strResp.IDEquals(7))
}

func TestUnmarshalResult(t *testing.T) {
	resp := &Response{Result: json.RawMessage(`{"content":[{"type":"text","text":"hi"}]}`)}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, resp.UnmarshalResult(&result))
	require.Len(t, result.Content, 1)
	require.Equal(t, "hi", result.Content[0].Text)

	empty := &Response{}
	require.Error(t, empty.UnmarshalResult(&result))
}
