package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	errs "KingShare/tools/errs"

	"github.com/gin-gonic/gin"
)

// context key for downstream handlers
const CtxAuthKey = "authorization"

type Options struct {
	// Token is the expected bearer value. Empty disables the check and
	// the middleware becomes a pass-through.
	Token string

	HeaderToken               string // default "authorization"
	EnableAuthorizationBearer bool   // default true
}

func DefaultOptions(token string) *Options {
	return &Options{
		Token:                     token,
		HeaderToken:               CtxAuthKey,
		EnableAuthorizationBearer: true,
	}
}

// Middleware guards the ops endpoints with a static bearer token.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions("")
	}
	return func(c *gin.Context) {
		if opts.Token == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if token == "" && opts.EnableAuthorizationBearer {
			token = strings.TrimSpace(c.GetHeader("Authorization"))
		}
		if opts.EnableAuthorizationBearer && strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(opts.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}
		c.Set(CtxAuthKey, token)
		c.Next()
	}
}
