package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

func serve(r *gin.Engine, method, target, body string) (*httptest.ResponseRecorder, response.Response) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestBindJSON_FieldErrors(t *testing.T) {
	r := gin.New()
	r.POST("/decide", func(c *gin.Context) {
		var req services.DecideMembershipRequest
		if bindJSON(c, &req) {
			response.Success(c, req)
		}
	})
	r.POST("/projects", func(c *gin.Context) {
		var req services.CreateProjectRequest
		if bindJSON(c, &req) {
			response.Success(c, req)
		}
	})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		field  string
	}{
		{"decision approved", "/decide", `{"status":"approved"}`, http.StatusOK, ""},
		{"decision rejected", "/decide", `{"status":"rejected"}`, http.StatusOK, ""},
		{"decision pending", "/decide", `{"status":"pending"}`, http.StatusBadRequest, "status"},
		{"decision missing", "/decide", `{}`, http.StatusBadRequest, "status"},
		{"project status ok", "/projects", `{"title":"x","status":"on_hold"}`, http.StatusOK, ""},
		{"project status omitted", "/projects", `{"title":"x"}`, http.StatusOK, ""},
		{"project status unknown", "/projects", `{"title":"x","status":"archived"}`, http.StatusBadRequest, "status"},
		{"project title missing", "/projects", `{"status":"pending"}`, http.StatusBadRequest, "title"},
		{"wrong type", "/projects", `{"title":12}`, http.StatusBadRequest, "title"},
		{"malformed", "/projects", `{"title":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serve(r, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, expected %d; body %s", w.Code, tt.status, w.Body.String())
			}
			if tt.field != "" {
				if _, ok := resp.Errors[tt.field]; !ok {
					t.Errorf("errors = %v, expected key %q", resp.Errors, tt.field)
				}
			}
		})
	}
}

func TestBindQuery_PaginationKeys(t *testing.T) {
	r := gin.New()
	r.GET("/projects", func(c *gin.Context) {
		var req services.ProjectListRequest
		if bindQuery(c, &req) {
			response.Success(c, req.Page)
		}
	})

	w, resp := serve(r, http.MethodGet, "/projects?page_size=500", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", w.Code)
	}
	if resp.Errors["page_size"] == "" {
		t.Errorf("errors = %v, expected page_size", resp.Errors)
	}

	w, _ = serve(r, http.MethodGet, "/projects?page=2&status=pending", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, expected 200", w.Code)
	}
}

func TestParamID(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		if id, ok := paramID(c, "id"); ok {
			response.Success(c, id)
		}
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/items/42", http.StatusOK},
		{"/items/0", http.StatusBadRequest},
		{"/items/-1", http.StatusBadRequest},
		{"/items/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w, _ := serve(r, http.MethodGet, tt.path, "")
		if w.Code != tt.status {
			t.Errorf("GET %s = %d, expected %d", tt.path, w.Code, tt.status)
		}
	}
}

func TestBindQuery_AuditFilters(t *testing.T) {
	r := gin.New()
	r.GET("/audit-logs", func(c *gin.Context) {
		var req services.AuditListRequest
		if bindQuery(c, &req) {
			response.Success(c, req.Module)
		}
	})

	tests := []struct {
		query  string
		status int
		field  string
	}{
		{"?module=projects&action=delete&since=2026-01-31", http.StatusOK, ""},
		{"?action=read", http.StatusBadRequest, "action"},
		{"?since=31/01/2026", http.StatusBadRequest, "since"},
	}
	for _, tt := range tests {
		w, resp := serve(r, http.MethodGet, "/audit-logs"+tt.query, "")
		if w.Code != tt.status {
			t.Errorf("GET %s = %d, expected %d", tt.query, w.Code, tt.status)
			continue
		}
		if tt.field != "" && resp.Errors[tt.field] == "" {
			t.Errorf("GET %s errors = %v, expected key %q", tt.query, resp.Errors, tt.field)
		}
	}
}
