package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
)

func serveClient(t *testing.T, req *http.Request, trusted ...string) *domain.ClientContext {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var got *domain.ClientContext
	router := gin.New()
	require.NoError(t, router.SetTrustedProxies(trusted))
	router.Use(ClientContext(trusted))
	router.GET("/", func(c *gin.Context) {
		got = domain.ClientFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	return got
}

func TestClientContext_Headers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("User-Agent", "wallet-ios/3.2")
	req.Header.Set(DeviceHeader, "device-abc")
	req.Header.Set(LocationHeader, " Lisbon, PT ")

	cc := serveClient(t, req, "203.0.113.0/24")
	assert.Equal(t, "203.0.113.9", cc.IPAddress)
	assert.Equal(t, "wallet-ios/3.2", cc.UserAgent)
	assert.Equal(t, "device-abc", cc.DeviceSignature)
	assert.Equal(t, "Lisbon, PT", cc.Location)
}

func TestClientContext_DeviceFromUserAgent(t *testing.T) {
	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.Header.Set("User-Agent", "wallet-android/1.0")
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.Header.Set("User-Agent", "wallet-android/1.0")
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("User-Agent", "curl/8.0")

	a := serveClient(t, first)
	b := serveClient(t, second)
	c := serveClient(t, other)

	assert.Len(t, a.DeviceSignature, 16)
	assert.Equal(t, a.DeviceSignature, b.DeviceSignature)
	assert.NotEqual(t, a.DeviceSignature, c.DeviceSignature)
	assert.Empty(t, a.Location)
}

func TestClientContext_NoUserAgent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Del("User-Agent")

	cc := serveClient(t, req)
	assert.Empty(t, cc.DeviceSignature)
}

func TestClientContext_UntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.20:5000"
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	req.Header.Set(LocationHeader, "Reykjavik, IS")

	cc := serveClient(t, req, "203.0.113.0/24")
	assert.Equal(t, "198.51.100.20", cc.IPAddress)
	assert.Empty(t, cc.Location)

	cc = serveClient(t, req)
	assert.Equal(t, "198.51.100.20", cc.IPAddress)
	assert.Empty(t, cc.Location)
}

func TestClientContext_TrustedGateway(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.77")
	req.Header.Set(LocationHeader, "Porto, PT")

	cc := serveClient(t, req, "10.0.0.5")
	assert.Equal(t, "198.51.100.77", cc.IPAddress)
	assert.Equal(t, "Porto, PT", cc.Location)
}
