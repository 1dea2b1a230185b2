package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"public x-real-ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"first public forwarded hop", map[string]string{"X-Forwarded-For": "10.0.0.5, 198.51.100.4, 203.0.113.9"}, "198.51.100.4"},
		{"all private forwarded", map[string]string{"X-Forwarded-For": "192.168.1.10, 10.0.0.1"}, "192.168.1.10"},
		{"no headers", nil, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetRealIP(newContext(tt.headers)))
		})
	}
}

func TestGetUserAgent(t *testing.T) {
	c := newContext(nil)
	c.Request.Header.Del("User-Agent")
	assert.Equal(t, "Unknown", GetUserAgent(c))

	c = newContext(map[string]string{"User-Agent": "curl/8.0"})
	assert.Equal(t, "curl/8.0", GetUserAgent(c))
}

func TestParseUserAgent(t *testing.T) {
	empty := ParseUserAgent("")
	assert.Equal(t, "unknown", empty.DeviceType)

	desktop := ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Equal(t, "desktop", desktop.DeviceType)
	assert.Equal(t, "windows", desktop.Platform)
	assert.Equal(t, "Chrome", desktop.Browser)

	phone := ParseUserAgent("Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")
	assert.Equal(t, "mobile", phone.DeviceType)
	assert.Equal(t, "android", phone.Platform)

	assert.Equal(t, "desktop", desktop.Map()["device_type"])
}
