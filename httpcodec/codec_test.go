package httpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y001j/uringhttp/resource"
)

func TestDecode(t *testing.T) {
	r := DefaultRouter()
	cases := []struct {
		req    string
		status Status
		res    resource.ID
	}{
		{"GET / HTTP/1.1\r\n\r\n", StatusOK, resource.Hello},
		{"GET / HTTP/1.1\r\nHost: x\r\n\r\n", StatusOK, resource.Hello},
		{"GET / HTTP/1.1\n", StatusOK, resource.Hello},
		{"GET / HTTP/1.1", StatusOK, resource.Hello},
		{"GET /x HTTP/1.1\r\n\r\n", StatusNotFound, resource.NotFound},
		{"POST / HTTP/1.1\r\n\r\n", StatusNotFound, resource.NotFound},
		{"GET / HTTP/1.0\r\n\r\n", StatusNotFound, resource.NotFound},
		{"GET  / HTTP/1.1\r\n\r\n", StatusNotFound, resource.NotFound},
		{"GET /\r\n", StatusNotFound, resource.NotFound},
		{"", StatusNotFound, resource.NotFound},
		{"\x00\xff\r\n", StatusNotFound, resource.NotFound},
	}
	for _, c := range cases {
		status, res := r.Decode([]byte(c.req))
		assert.Equal(t, c.status, status, "%q", c.req)
		assert.Equal(t, c.res, res, "%q", c.req)
	}
}

func TestRouterHandle(t *testing.T) {
	r := NewRouter(Route{Status: StatusNotFound, Resource: resource.NotFound})
	r.Handle("GET", "/index.html", Route{Status: StatusOK, Resource: resource.Hello})

	status, res := r.Decode([]byte("GET /index.html HTTP/1.1\r\n"))
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, resource.Hello, res)
	assert.Len(t, r.Routes(), 2)
}

func TestEncode(t *testing.T) {
	out := make([]byte, 128)
	n, err := Encode(StatusOK, []byte("<h1>Hello!</h1>"), out)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 15\r\n\r\n<h1>Hello!</h1>", string(out[:n]))
	assert.Equal(t, n, ResponseLen(StatusOK, 15))

	n, err = Encode(StatusNotFound, nil, out)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 404 NOT FOUND\r\nContent-Length: 0\r\n\r\n", string(out[:n]))

	assert.Equal(t, "HTTP/1.1 404 NOT FOUND", Status(500).Line())
}

func TestEncodeAliasedBody(t *testing.T) {
	out := make([]byte, 64)
	body := "0123456789abcdefghij"
	copy(out, body)

	n, err := Encode(StatusOK, out[:len(body)], out)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 20\r\n\r\n"+body, string(out[:n]))
}

func TestEncodeShortBuffer(t *testing.T) {
	body := []byte("<h1>Hello!</h1>")
	out := make([]byte, ResponseLen(StatusOK, len(body))-1)
	_, err := Encode(StatusOK, body, out)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
