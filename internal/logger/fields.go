package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldMethod is the structured log field key for the HTTP method.
	FieldMethod = "method"
	// FieldURL is the structured log field key for the request URL.
	FieldURL = "url"
	// FieldRequestID is the structured log field key for the X-Request-ID header value.
	FieldRequestID = "request_id"
	// FieldStatus is the structured log field key for the HTTP status code.
	FieldStatus = "status"
	// FieldDuration is the structured log field key for the request duration.
	FieldDuration = "duration"

	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the fields to the logger, falling back to a no-op
// logger when logger is nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RequestFields describes an outgoing API request.
func RequestFields(method, url, requestID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldMethod, Value: method},
		StringField{Key: FieldURL, Value: url},
		StringField{Key: FieldRequestID, Value: requestID},
	)
}

// CommonFields returns the fields that describe an AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the AI provider fields to the logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}
