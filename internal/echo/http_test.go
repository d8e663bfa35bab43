package echo

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echobench/internal/message"
)

func post(t *testing.T, url string, body []byte) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestHandlerEchoes(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	payload, err := message.Encode(message.Request{ID: 7, SentAt: time.UnixMilli(1700000000000), Data: message.Generate(5)})
	require.NoError(t, err)

	status, body := post(t, srv.URL+"/benchmark", payload)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, string(payload), string(body))
}

func TestHandlerRejects(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	status, body := post(t, srv.URL+"/benchmark", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, string(body))

	status, body = post(t, srv.URL+"/elsewhere", []byte("{}"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Not Found"}`, string(body))

	resp, err := http.Get(srv.URL + "/benchmark")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerMalformedEvery(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{Behavior: Behavior{MalformedEvery: 2}}))
	defer srv.Close()

	for id, wantOK := range map[uint64]bool{1: true, 2: false, 3: true, 4: false} {
		payload, err := message.Encode(message.Request{ID: id, SentAt: time.Now()})
		require.NoError(t, err)
		status, body := post(t, srv.URL+"/benchmark", payload)
		assert.Equal(t, http.StatusOK, status)
		_, err = message.Decode(body)
		assert.Equal(t, wantOK, err == nil, "id %d", id)
	}
}

func TestListenPicksPort(t *testing.T) {
	server, addr, err := Listen("127.0.0.1:0", ServerConfig{Path: "/echo"})
	require.NoError(t, err)
	defer server.Close()

	payload, err := message.Encode(message.Request{ID: 1, SentAt: time.Now()})
	require.NoError(t, err)
	status, _ := post(t, "http://"+addr.String()+"/echo", payload)
	assert.Equal(t, http.StatusOK, status)
}

func TestHandlerEncodeFailure(t *testing.T) {
	failing := Behavior{encode: func(any) ([]byte, error) { return nil, errors.New("boom") }}
	srv := httptest.NewServer(Handler(ServerConfig{Behavior: failing}))
	defer srv.Close()

	payload, err := message.Encode(message.Request{ID: 1, SentAt: time.Now()})
	require.NoError(t, err)
	status, body := post(t, srv.URL+"/benchmark", payload)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, string(body))
}
