package utils

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/types"
)

// Header values that never reach the request log
var redactedHeaders = []string{
	fiber.HeaderAuthorization,
	"X-Paystack-Signature",
	"Verif-Hash",
	"X-Api-Key",
}

// sanitizeRequestBody sanitizes request body for file uploads and large content
func sanitizeRequestBody(c *fiber.Ctx) string {
	contentType := c.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		formData := make(map[string]interface{})

		if form, err := c.MultipartForm(); err == nil {
			for key, values := range form.Value {
				if len(values) > 0 {
					formData[key] = values[0]
				}
			}

			// file metadata only
			for key, files := range form.File {
				fileInfo := make([]map[string]interface{}, len(files))
				for i, file := range files {
					fileInfo[i] = map[string]interface{}{
						"filename": file.Filename,
						"size":     file.Size,
						"content":  "[FILE_CONTENT_REMOVED]",
					}
				}
				formData[key] = fileInfo
			}
		}

		if jsonBytes, err := json.Marshal(formData); err == nil {
			return string(jsonBytes)
		}
		return "[MULTIPART_FORM_DATA]"
	}

	// signed contract blobs travel base64 encoded in JSON
	body := string(c.Body())
	if len(body) > 1000 && (strings.Contains(body, "data:") ||
		strings.Contains(body, "base64") ||
		isLikelyBase64(body)) {
		return "[LARGE_REQUEST_BODY_WITH_POSSIBLE_FILE_CONTENT]"
	}

	return body
}

// isLikelyBase64 detects if content looks like base64
func isLikelyBase64(content string) bool {
	if len(content) < 100 {
		return false
	}

	base64Chars := 0
	for _, char := range content {
		if (char >= 'A' && char <= 'Z') ||
			(char >= 'a' && char <= 'z') ||
			(char >= '0' && char <= '9') ||
			char == '+' || char == '/' || char == '=' {
			base64Chars++
		}
	}

	return float64(base64Chars)/float64(len(content)) > 0.8
}

// redactHeaders renders raw request headers with credential values masked
func redactHeaders(c *fiber.Ctx) string {
	var b strings.Builder
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		v := string(value)
		for _, h := range redactedHeaders {
			if strings.EqualFold(k, h) {
				v = "[REDACTED]"
				break
			}
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	})
	return b.String()
}

// CreateSanitizedLogEntry creates a deep copied and sanitized log entry.
// Everything is copied because fiber reuses the context after the handler returns.
func CreateSanitizedLogEntry(c *fiber.Ctx, actorID string, startedAt time.Time) types.LogEntry {
	method := string([]byte(c.Method()))
	url := string([]byte(c.OriginalURL()))
	requestBody := sanitizeRequestBody(c)
	responseBody := string(append([]byte(nil), c.Response().Body()...))

	responseHeaders := make([]byte, len(c.Response().Header.Header()))
	copy(responseHeaders, c.Response().Header.Header())

	return types.LogEntry{
		Method:          method,
		URL:             url,
		ActorID:         actorID,
		RequestBody:     requestBody,
		ResponseBody:    responseBody,
		RequestHeaders:  redactHeaders(c),
		ResponseHeaders: string(responseHeaders),
		StatusCode:      c.Response().StatusCode(),
		LatencyMs:       time.Since(startedAt).Milliseconds(),
		CreatedAt:       startedAt,
	}
}
