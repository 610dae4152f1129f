package tlsutil

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	// 返回的是副本
	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), ClientConfig().CipherSuites[0])
}

func TestNewTransport(t *testing.T) {
	tr := NewTransport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.NotNil(t, tr.Proxy)
	assert.Equal(t, 16, tr.MaxIdleConnsPerHost)
}

func TestSecureHTTPClient_SharesTransport(t *testing.T) {
	a := SecureHTTPClient(15 * time.Second)
	b := SecureHTTPClient(time.Minute)
	assert.Equal(t, 15*time.Second, a.Timeout)
	assert.Same(t, a.Transport, b.Transport)
}

func TestSecureHTTPClient_Roundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := SecureHTTPClient(time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
