package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/onlinebus/booking-gateway/internal/utils"
)

const (
	// TabIDHeader identifies the browser tab a request belongs to
	TabIDHeader = "X-Tab-ID"
	// TabIDCookie is the fallback for page navigations that cannot set headers
	TabIDCookie = "tab_id"

	tabIDKey = "tab_id"
)

// TabSession resolves the browser tab of the request. Tabs without a valid
// id get a fresh one, returned in the header and cookie.
func TabSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tabID := c.GetHeader(TabIDHeader)
		if tabID == "" {
			tabID, _ = c.Cookie(TabIDCookie)
		}
		if _, err := uuid.Parse(tabID); err != nil {
			tabID = uuid.NewString()
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(TabIDCookie, tabID, 0, "/", "", false, true)
		}

		c.Header(TabIDHeader, tabID)
		c.Set(tabIDKey, tabID)
		c.Next()
	}
}

// GetTabID returns the tab id set by TabSession
func GetTabID(c *gin.Context) string {
	return c.GetString(tabIDKey)
}

// RequestContext copies the caller's credentials and metadata onto the request
// context so backend calls and audit rows carry them.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := services.WithCredentials(c.Request.Context(), services.Credentials{
			Authorization: c.GetHeader("Authorization"),
			Cookie:        c.GetHeader("Cookie"),
		})
		ctx = services.WithRequestMeta(ctx, services.RequestMeta{
			IPAddress: utils.GetRealIP(c),
			UserAgent: utils.GetUserAgent(c),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
