package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// Attribute keys shared by every package.
const (
	KeyOperation      = "operation"
	KeyRun            = "run_id"
	KeyMessage        = "message_id"
	KeyLabel          = "label"
	KeyClassification = "classification"
	KeySender         = "sender_hash"
	KeySenderDomain   = "sender_domain"
	KeyCount          = "count"
	KeyDuration       = "duration"
	KeyStatus         = "status"
	KeyError          = "error"
	KeyTool           = "tool"
)

// Status values. They mirror instrumentation.StatusSuccess/StatusError, which
// cannot be imported here without a cycle.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns logger annotated with the operation name.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

// WithRun returns logger annotated with the pipeline run id.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(Run(runID))
}

// WithTool returns logger annotated with an MCP tool name.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Run(runID string) slog.Attr {
	return slog.String(KeyRun, runID)
}

func Message(id string) slog.Attr {
	return slog.String(KeyMessage, id)
}

func Label(name string) slog.Attr {
	return slog.String(KeyLabel, name)
}

func Classification(c string) slog.Attr {
	return slog.String(KeyClassification, c)
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns the error attribute, or an empty group that slog drops when err
// is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an address so log lines can be correlated without
// exposing it.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(hash[:8])
}

// Sender converts a From header into hashed address and domain attributes.
// Display names are discarded.
func Sender(from string) slog.Attr {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	return slog.Group("",
		slog.String(KeySender, AnonymizeEmail(addr)),
		slog.String(KeySenderDomain, ExtractDomain(addr)),
	)
}

// ExtractDomain returns the part after '@', or "" for anything that is not a
// plain address.
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}

// SanitizeToken describes a secret by its length only.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
