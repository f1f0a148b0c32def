package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// Pagination is embedded in list requests.
type Pagination struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p *Pagination) normalize(defaultSize int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *Pagination) offset() int {
	return (p.Page - 1) * p.PageSize
}

// notFoundOr turns gorm.ErrRecordNotFound into a 404 and wraps anything else.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// likeEscape is the ESCAPE character used with likePrefix and likeContains.
// A backslash would need different quoting per dialect.
const likeEscape = "ESCAPE '!'"

// likePrefix lower-cases s, escapes LIKE wildcards and appends %.
func likePrefix(s string) string {
	return likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

func likeContains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
