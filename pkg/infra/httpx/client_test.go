package httpx

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestNewUpstreamClient_Defaults(t *testing.T) {
	client := NewUpstreamClient()

	assert.Equal(t, DefaultReceiveTimeout, client.ReadTimeout)
	assert.Equal(t, DefaultSendTimeout, client.WriteTimeout)
	assert.Equal(t, 1, client.MaxIdemponentCallAttempts)
	assert.Nil(t, client.TLSConfig)
	assert.NotNil(t, client.Dial)
}

func TestNewUpstreamClient_Options(t *testing.T) {
	client := NewUpstreamClient(
		WithSendTimeout(2*time.Second),
		WithReceiveTimeout(3*time.Second),
		WithInsecureSkipVerify(true),
		WithMaxConnsPerHost(8),
		WithMaxResponseBodySize(1024),
	)

	assert.Equal(t, 2*time.Second, client.WriteTimeout)
	assert.Equal(t, 3*time.Second, client.ReadTimeout)
	assert.Equal(t, 8, client.MaxConnsPerHost)
	assert.Equal(t, 1024, client.MaxResponseBodySize)
	require.NotNil(t, client.TLSConfig)
	assert.True(t, client.TLSConfig.InsecureSkipVerify)
}

func TestNewUpstreamClient_DoesNotRetry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{}, 10)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- struct{}{}
			_ = conn.Close()
		}
	}()

	client := NewUpstreamClient(WithConnectTimeout(time.Second))
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://" + ln.Addr().String() + "/")

	assert.Error(t, client.Do(req, resp))

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, accepted, 1)
}
