package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, reply string, capture *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			params := map[string]string{}
			for k := range r.URL.Query() {
				params[k] = r.URL.Query().Get(k)
			}
			*capture = params
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Send_success(t *testing.T) {
	var params map[string]string
	srv := newGateway(t, "1", &params)
	c := NewClient(Config{APIURL: srv.URL, User: "u", SecretKey: "k", Sender: "ZUWARA"}, nil)

	ok, msg := c.Send(context.Background(), "966555552022", "ZUWARA: Your verification code is 123456")
	assert.True(t, ok)
	assert.Equal(t, "SMS sent successfully", msg)

	// Gateway receives the bare local number plus credentials.
	require.NotNil(t, params)
	assert.Equal(t, "555552022", params["to"])
	assert.Equal(t, "u", params["user"])
	assert.Equal(t, "ZUWARA", params["sender"])
	assert.Contains(t, params["message"], "123456")
}

func TestClient_Send_providerErrors(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"-124", "Failed to send SMS: Invalid credentials or IP not whitelisted"},
		{"-120", "Failed to send SMS: Invalid sender ID"},
		{"-110", "Failed to send SMS: Invalid phone number format"},
		{"-111", "Failed to send SMS: Insufficient credit"},
		{"-999", "Failed to send SMS: API error -999"},
	}
	for _, c := range cases {
		srv := newGateway(t, c.reply, nil)
		client := NewClient(Config{APIURL: srv.URL}, nil)
		ok, msg := client.Send(context.Background(), "966555552022", "hi")
		assert.False(t, ok, "reply %s should fail", c.reply)
		assert.Equal(t, c.want, msg)
	}
}

func TestClient_Send_noisyReply(t *testing.T) {
	srv := newGateway(t, "\n 1 \r\n", nil)
	client := NewClient(Config{APIURL: srv.URL}, nil)
	ok, _ := client.Send(context.Background(), "966555552022", "hi")
	assert.True(t, ok, "whitespace around the status code must be tolerated")
}

func TestClient_Send_retriesTransportErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			// Drop the connection to force a client-side error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("1"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIURL: srv.URL}, nil)
	ok, _ := client.Send(context.Background(), "966555552022", "hi")
	assert.True(t, ok, "a transient transport failure should be retried")
	assert.Equal(t, 2, calls)
}

func TestDevSender(t *testing.T) {
	ok, msg := NewDevSender(nil).Send(context.Background(), "966555552022", "hi")
	assert.True(t, ok)
	assert.Equal(t, "SMS sent successfully (Development Mode)", msg)
}
