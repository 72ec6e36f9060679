package handlers

import (
	"strconv"

	"github.com/pocketbase/pocketbase/core"
)

// envelope is the common success response shape.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(e *core.RequestEvent, code int, message string, data any) error {
	return e.JSON(code, envelope{Code: code, Message: message, Data: data})
}

func isAdmin(e *core.RequestEvent) bool {
	if e.Auth == nil {
		return false
	}
	if e.Auth.IsSuperuser() {
		return true
	}
	return e.Auth.GetBool("is_admin")
}

// listParams reads pagination query params with sane bounds.
func listParams(e *core.RequestEvent) (limit, offset int) {
	q := e.Request.URL.Query()
	limit = intParam(q.Get("limit"), 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset = intParam(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
