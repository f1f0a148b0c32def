package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/logger"
)

const auditBodyLimit = 2000

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(entry *models.AuditLog) error
}

// sensitiveKeys are masked wherever they appear in a JSON body.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"old_password":  true,
	"new_password":  true,
	"token":         true,
	"refresh_token": true,
	"access_token":  true,
	"secret":        true,
}

// Audit records authenticated write requests (POST, PUT, PATCH, DELETE).
// Must run after AuthRequired.
func Audit(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		action := auditAction(c.Request.Method)
		if action == "" {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = maskBody(raw)
		}

		c.Next()

		entry := &models.AuditLog{
			Email:     GetEmail(c),
			Module:    auditModule(c.FullPath()),
			Action:    action,
			Method:    c.Request.Method,
			Route:     c.FullPath(),
			Path:      c.Request.URL.Path,
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Body:      body,
		}
		if id := GetUserID(c); id > 0 {
			entry.UserID = &id
		}
		if err := recorder.Record(entry); err != nil {
			logger.Warn().Err(err).Str("route", entry.Route).Msg("audit entry dropped")
		}
	}
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return ""
}

// auditModule maps "/api/projects/:id/roles" to "projects".
func auditModule(route string) string {
	route = strings.TrimPrefix(route, "/api/")
	module, _, _ := strings.Cut(strings.TrimPrefix(route, "/"), "/")
	if module == "" {
		return "unknown"
	}
	return module
}

// maskBody replaces sensitive values in a JSON body and caps its length.
// Non-JSON bodies are kept as-is.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err == nil {
		if masked, err := json.Marshal(maskValue(doc)); err == nil {
			raw = masked
		}
	}
	body := string(raw)
	if len(body) > auditBodyLimit {
		body = body[:auditBodyLimit] + "...[truncated]"
	}
	return body
}

func maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if sensitiveKeys[strings.ToLower(k)] {
				val[k] = "***"
				continue
			}
			val[k] = maskValue(inner)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = maskValue(val[i])
		}
		return val
	}
	return v
}
