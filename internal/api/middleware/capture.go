package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/staffdeck/staffdeck/internal/audit"
	"github.com/staffdeck/staffdeck/internal/models"
)

// AuditSink receives finished audit entries for asynchronous persistence.
// The recorder in internal/services implements it.
type AuditSink interface {
	Enqueue(entry models.AuditEntry)
}

const (
	apiPrefix          = "/api/v1/"
	loginPath          = "/api/v1/auth/login"
	logoutPath         = "/api/v1/auth/logout"
	changePasswordPath = "/api/v1/auth/change-password"

	// maxCapturedBody caps how much of a request body is buffered for the log.
	maxCapturedBody = 64 * 1024
)

// skipPaths are never audited: health and metrics probes are noise, and
// auditing reads of the audit log itself would feed back into the store.
var skipPaths = map[string]struct{}{
	"/api/v1/health": {},
	"/metrics":       {},
}

// skipPrefixes extends the skip list to the read-only audit surface. The
// cleanup endpoint is still recorded, by the retention service itself.
var skipPrefixes = []string{
	"/api/v1/audit-logs",
}

// sensitiveBodyPaths never retain a request body, redacted or not.
var sensitiveBodyPaths = map[string]struct{}{
	loginPath:          {},
	changePasswordPath: {},
}

// entityOverrides maps route segments whose entity cannot be derived by the
// trailing-"s" strip. Unlisted segments fall back to the strip, matching the
// derivations existing stored data depends on.
var entityOverrides = map[string]models.AuditEntity{
	"staff":              models.EntityUser,
	"auth":               models.EntityUser,
	"attendance":         models.EntityAttendance,
	"disciplinary":       models.EntityDisciplinary,
	"disciplinary-cases": models.EntityDisciplinary,
	"audit-logs":         models.EntityAudit,
}

// entityIDParams are probed in order for the acted-upon instance id.
var entityIDParams = []string{"id", "userId", "staffId", "leaveId", "caseId"}

// Capture observes every privileged request and hands exactly one audit entry
// to the sink after the response has been written, even when the downstream
// handler panics. All of capture's own failures are swallowed: audit is
// best-effort observability, never a gate on the request it observes.
func Capture(sink AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if shouldSkip(path) {
			c.Next()
			return
		}

		// Principal presence is known before the handler runs; skipping here
		// avoids buffering bodies for requests that will never be recorded.
		actorID, hasActor := principalID(c)
		if !hasActor && path != loginPath {
			c.Next()
			return
		}

		// Buffer the body before the handler consumes it. Mutating methods
		// only; the buffered copy is restored for the handler.
		var body map[string]interface{}
		if retainableMethod(c.Request.Method) && c.Request.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody))
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				_ = json.Unmarshal(raw, &body)
			}
		}

		start := time.Now()
		defer func() {
			panicked := recover()
			record(c, sink, path, body, start, actorID, hasActor, panicked != nil)
			if panicked != nil {
				// The recovery middleware still owns the 500 response.
				panic(panicked)
			}
		}()
		c.Next()
	}
}

// record builds and enqueues the single entry for a request. It recovers its
// own panics so a capture fault never reaches the handler chain.
func record(c *gin.Context, sink AuditSink, path string, body map[string]interface{},
	start time.Time, actorID uint, hasActor, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			GetRequestLogger(c).Errorf("audit capture panic: %v", r)
		}
	}()

	elapsed := time.Since(start)

	// A panicking handler never wrote a status; the recovery middleware will
	// answer 500 once the panic resumes.
	statusCode := c.Writer.Status()
	if panicked {
		statusCode = http.StatusInternalServerError
	}

	status := outcomeStatus(statusCode)
	action := deriveAction(c.Request.Method, path, status)
	entity := deriveEntity(path)
	entry := models.AuditEntry{
		Action:    action,
		Entity:    entity,
		EntityID:  deriveEntityID(c, body),
		Status:    status,
		Severity:  audit.Classify(action, entity, status),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Resource:  c.Request.URL.String(),
		RequestID: c.GetString(RequestIDKey),
		SessionID: c.GetString(SessionIDKey),
		Timestamp: start,
	}
	if hasActor {
		entry.ActorID = &actorID
	}

	ms := elapsed.Milliseconds()
	entry.ResponseTime = &ms

	details := datatypes.JSONMap{
		"method":       c.Request.Method,
		"path":         path,
		"statusCode":   statusCode,
		"responseTime": ms,
		"responseSize": c.Writer.Size(),
	}
	if q := c.Request.URL.RawQuery; q != "" {
		details["query"] = q
	}
	if params := routeParams(c); len(params) > 0 {
		details["params"] = params
	}
	if body != nil && retainBody(path, entity) {
		details["requestBody"] = audit.Redact(body)
	}
	entry.Details = details

	if role := c.GetString(UserRoleKey); role != "" {
		entry.Metadata = datatypes.JSONMap{"actorRole": role}
	}

	sink.Enqueue(entry)
}

func shouldSkip(path string) bool {
	if _, ok := skipPaths[path]; ok {
		return true
	}
	for _, p := range skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func retainableMethod(method string) bool {
	return method == "POST" || method == "PUT" || method == "PATCH"
}

// retainBody decides whether the (redacted) request body is kept in details.
// Sensitive paths never keep one; neither do user/auth entities, whose
// payloads are dominated by account material.
func retainBody(path string, entity models.AuditEntity) bool {
	if _, ok := sensitiveBodyPaths[path]; ok {
		return false
	}
	return entity != models.EntityUser
}

func outcomeStatus(code int) models.AuditStatus {
	if code >= 400 {
		return models.StatusFailed
	}
	return models.StatusSuccess
}

func deriveAction(method, path string, status models.AuditStatus) models.AuditAction {
	switch path {
	case loginPath:
		if status == models.StatusFailed {
			return models.ActionLoginFailed
		}
		return models.ActionLogin
	case logoutPath:
		return models.ActionLogout
	case changePasswordPath:
		return models.ActionPasswordChange
	}

	switch method {
	case "POST":
		return models.ActionCreate
	case "PUT", "PATCH":
		return models.ActionUpdate
	case "DELETE":
		return models.ActionDelete
	default:
		return models.ActionRead
	}
}

// deriveEntity resolves the business entity from the first path segment after
// the API prefix, through the override table or the trailing-"s" strip.
func deriveEntity(path string) models.AuditEntity {
	rest := strings.TrimPrefix(path, apiPrefix)
	if rest == path {
		return models.EntitySystem
	}
	segment := rest
	if i := strings.IndexByte(rest, '/'); i != -1 {
		segment = rest[:i]
	}
	if segment == "" {
		return models.EntitySystem
	}
	if e, ok := entityOverrides[segment]; ok {
		return e
	}
	return models.AuditEntity(strings.TrimSuffix(segment, "s"))
}

func deriveEntityID(c *gin.Context, body map[string]interface{}) string {
	for _, name := range entityIDParams {
		if v := c.Param(name); v != "" {
			return v
		}
	}
	for _, name := range []string{"_id", "id"} {
		if v, ok := body[name]; ok {
			if s := idString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func principalID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func routeParams(c *gin.Context) map[string]string {
	if len(c.Params) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		out[p.Key] = p.Value
	}
	return out
}
