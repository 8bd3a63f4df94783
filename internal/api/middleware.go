package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meddatachat/internal/logging"
	"meddatachat/internal/models"
	"meddatachat/internal/service/assistant"
)

const (
	sessionCookieName = "meddatachat_session"
	sessionIDKey      = "sid"
	ctxSessionKey     = "session"

	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"

	// multipartOverhead covers boundaries and the small form fields sent
	// alongside the file.
	multipartOverhead = 1 << 20
)

// loadSession resolves the browser's session from its signed cookie, creating
// a fresh one when the cookie is missing, tampered with, or expired.
func (h *Handler) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cs, _ := h.cookies.Get(c.Request, sessionCookieName)
		if id, ok := cs.Values[sessionIDKey].(string); ok && id != "" {
			if se, err := h.sessions.Get(id); err == nil {
				c.Set(ctxSessionKey, se)
				c.Next()
				return
			}
		}
		se, err := h.sessions.Create()
		if err != nil {
			h.abortWithError(c, nil, err)
			return
		}
		cs.Values[sessionIDKey] = se.ID
		if err := cs.Save(c.Request, c.Writer); err != nil {
			h.sessions.Delete(se.ID)
			h.abortWithError(c, nil, err)
			return
		}
		logging.FromContext(c.Request.Context()).Debug().Msg("session started")
		c.Set(ctxSessionKey, se)
		c.Next()
	}
}

// limitBody rejects request bodies larger than the upload limit.
func (h *Handler) limitBody() gin.HandlerFunc {
	limit := h.opts.MaxUploadBytes + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			h.abortWithError(c, currentSession(c), ErrFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// csrf enforces a synchronizer token: unsafe methods must echo the session's
// token in the X-CSRF-Token header or the csrf_token form field.
func (h *Handler) csrf() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requiresCSRFCheck(c.Request.Method) {
			c.Next()
			return
		}
		se := currentSession(c)
		token := c.GetHeader(csrfHeaderName)
		if token == "" {
			if err := h.parseForm(c.Request); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					h.abortWithError(c, se, ErrFileTooLarge)
					return
				}
				h.abortWithError(c, se, errBadForm)
				return
			}
			token = c.Request.PostFormValue(csrfFormField)
		}
		if se == nil || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(se.CSRFToken)) != 1 {
			h.abortWithError(c, se, ErrInvalidCSRF)
			return
		}
		c.Next()
	}
}

func (h *Handler) requireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		se := currentSession(c)
		if !se.HasCredential() {
			h.abortWithError(c, se, assistant.ErrMissingCredential)
			return
		}
		c.Next()
	}
}

func (h *Handler) parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(h.opts.MaxUploadBytes)
	}
	return r.ParseForm()
}

func requiresCSRFCheck(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func currentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	se, _ := v.(*models.Session)
	return se
}
