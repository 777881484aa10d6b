package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// AuditCollection holds the persisted audit trail.
const AuditCollection = "auditlog"

// AuditEntry records who touched which dashboard resource and how.
type AuditEntry struct {
	UserID     string
	Role       string
	Resource   string
	RecordID   string
	Action     string // read, create, update, delete
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// StoreAuditRecorder appends successful writes to the audit collection.
// Reads are only logged.
func StoreAuditRecorder(s store.Store) AuditRecorder {
	return AuditRecorderFunc(func(ctx context.Context, e AuditEntry) error {
		if e.Action == "read" || e.StatusCode >= 400 {
			return nil
		}
		_, err := s.Add(ctx, AuditCollection, store.F(
			"userId", e.UserID,
			"role", e.Role,
			"resource", e.Resource,
			"recordId", e.RecordID,
			"action", e.Action,
			"method", e.Method,
			"path", e.Path,
			"status", e.StatusCode,
			"requestId", e.RequestID,
			"remoteIp", e.IPAddress,
			"timestamp", store.FormatTime(e.Timestamp),
		))
		return err
	})
}

// Audit logs every /api/v1 request made under a session with the user and hands the
// entry to the recorders. Recorder failures are logged, never returned.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") || auth.IsPublicPath(c.Path()) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			ctx := c.Request().Context()
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: status,
				UserID:     auth.UserIDFromContext(ctx),
				Action:     httpMethodToAction(req.Method),
				RecordID:   c.Param("id"),
			}
			if sess := auth.SessionFromContext(ctx); sess != nil {
				entry.Role = sess.Role
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}
			entry.Resource = resourceOf(path, entry.RecordID)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceOf returns up to two path segments after /api/v1/, skipping the
// record id: /api/v1/pharmacy/sales/42 -> pharmacy/sales.
func resourceOf(path, id string) string {
	var segs []string
	for _, s := range strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/") {
		if s == "" || s == id {
			continue
		}
		segs = append(segs, s)
		if len(segs) == 2 {
			break
		}
	}
	if len(segs) == 0 {
		return "unknown"
	}
	return strings.Join(segs, "/")
}
