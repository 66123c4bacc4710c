// Package middleware provides HTTP and gRPC middleware for integrating ContextGuard.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// Mode selects what the HTTP middleware does with sensitive bodies
type Mode string

const (
	// ModeBlock rejects requests the policy blocks with 422
	ModeBlock Mode = "block"
	// ModeRedact scrubs detected values from the body and passes it on
	ModeRedact Mode = "redact"
)

// Response headers set by the middleware
const (
	HeaderFindings = "X-ContextGuard-Findings"
	HeaderRedacted = "X-ContextGuard-Redacted"
)

// HTTPConfig configures the HTTP scanning middleware
type HTTPConfig struct {
	Mode        Mode  `json:"mode"`
	MaxBodySize int64 `json:"max_body_size"`

	// Header extraction
	SourceHeader    string `json:"source_header"`
	RequestIDHeader string `json:"request_id_header"`

	// Exemptions
	ExemptPaths   []string `json:"exempt_paths"`
	ExemptMethods []string `json:"exempt_methods"`

	Logger *slog.Logger `json:"-"`
}

// DefaultHTTPConfig returns default HTTP middleware configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Mode:            ModeBlock,
		MaxBodySize:     1 << 20, // 1MB
		SourceHeader:    "X-ContextGuard-Source",
		RequestIDHeader: "X-Request-ID",
		ExemptPaths:     []string{"/health", "/metrics"},
		ExemptMethods:   []string{"GET", "HEAD", "OPTIONS"},
	}
}

// HTTPConfigFromSettings converts the HTTP server section of the application config.
func HTTPConfigFromSettings(cfg config.HTTPServerConfig) *HTTPConfig {
	hc := DefaultHTTPConfig()
	if cfg.Mode != "" {
		hc.Mode = Mode(strings.ToLower(cfg.Mode))
	}
	if cfg.MaxBodySize > 0 {
		hc.MaxBodySize = cfg.MaxBodySize
	}
	return hc
}

// MiddlewareResult contains the result of middleware processing
type MiddlewareResult struct {
	RequestID   string
	Blocked     bool
	BlockReason string
	Redacted    bool
	Result      *pipeline.Result
}

type contextKey int

const middlewareResultKey contextKey = iota

// GetMiddlewareResult returns the scan outcome stored on the request, if any.
func GetMiddlewareResult(r *http.Request) *MiddlewareResult {
	res, _ := r.Context().Value(middlewareResultKey).(*MiddlewareResult)
	return res
}

// blockedResponse is the JSON body of a 422 response. Findings carry masked
// values only.
type blockedResponse struct {
	Error     string         `json:"error"`
	Reason    string         `json:"reason"`
	RequestID string         `json:"request_id"`
	Findings  []scan.Finding `json:"findings"`
}

// ScanMiddleware scans request bodies before they reach next. In block mode
// bodies the policy blocks are rejected with 422; in redact mode any body
// that would prompt a user is scrubbed in place.
func ScanMiddleware(proc pipeline.Processor, cfg *HTTPConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path, cfg.ExemptPaths) || isExemptMethod(r.Method, cfg.ExemptMethods) || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			requestID := r.Header.Get(cfg.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(cfg.RequestIDHeader, requestID)

			body, err := readBody(w, r, cfg.MaxBodySize)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large", requestID)
					return
				}
				writeError(w, http.StatusBadRequest, "reading request body", requestID)
				return
			}

			source := r.Header.Get(cfg.SourceHeader)
			if source == "" {
				source = r.Host + r.URL.Path
			}

			res, err := proc.Process(r.Context(), pipeline.Request{
				Text:    string(body),
				Source:  source,
				Trigger: pipeline.TriggerRequest,
			})
			if err != nil {
				if errors.Is(err, pipeline.ErrContentTooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large", requestID)
					return
				}
				logger.Error("scanning request body", "request_id", requestID, "error", err)
				writeError(w, http.StatusInternalServerError, "scan failed", requestID)
				return
			}

			mr := &MiddlewareResult{RequestID: requestID, Result: res}
			if !res.Clean() {
				w.Header().Set(HeaderFindings, strconv.Itoa(res.Report.Total))
			}

			switch {
			case res.Decision.Blocked() && cfg.Mode != ModeRedact:
				mr.Blocked = true
				mr.BlockReason = res.Decision.Reason
				record(r.Context(), proc, logger, audit.OutcomeBlocked, res)
				writeJSON(w, http.StatusUnprocessableEntity, blockedResponse{
					Error:     "content blocked",
					Reason:    res.Decision.Reason,
					RequestID: requestID,
					Findings:  res.Findings,
				})
				return

			case res.NeedsPrompt() && cfg.Mode == ModeRedact:
				body = []byte(proc.Redactor().Scrub(string(body), res.Findings))
				mr.Redacted = true
				w.Header().Set(HeaderRedacted, strconv.Itoa(res.Report.Total))
				record(r.Context(), proc, logger, audit.OutcomeRedacted, res)

			case res.NeedsPrompt():
				record(r.Context(), proc, logger, audit.OutcomeWarned, res)
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set("Content-Length", strconv.Itoa(len(body)))

			ctx := context.WithValue(r.Context(), middlewareResultKey, mr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	rc := r.Body
	if limit > 0 {
		rc = http.MaxBytesReader(w, r.Body, limit)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func record(ctx context.Context, proc pipeline.Processor, logger *slog.Logger, outcome audit.Outcome, res *pipeline.Result) {
	if _, err := proc.Record(ctx, outcome, res); err != nil {
		logger.Warn("recording request outcome", "id", res.ID, "outcome", outcome, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, requestID string) {
	writeJSON(w, status, map[string]string{
		"error":      msg,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// isExemptPath reports whether path equals or sits under an exempt path.
func isExemptPath(path string, exempt []string) bool {
	for _, p := range exempt {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func isExemptMethod(method string, exempt []string) bool {
	for _, m := range exempt {
		if strings.EqualFold(method, m) {
			return true
		}
	}
	return false
}
