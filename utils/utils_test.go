package utils

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jibzus/bluefleet-sub001/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSanitizedLogEntry(t *testing.T) {
	var entry types.LogEntry
	app := fiber.New()
	app.Post("/api/contracts/:id/sign", func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Status(fiber.StatusCreated).SendString(`{"ok":true}`)
		entry = CreateSanitizedLogEntry(c, "u1", started)
		return err
	})

	blob := strings.Repeat("QUJD", 400)
	req := httptest.NewRequest("POST", "/api/contracts/c1/sign?x=1", strings.NewReader(`{"blob":"`+blob+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	_, _ = io.ReadAll(resp.Body)

	assert.Equal(t, "POST", entry.Method)
	assert.Equal(t, "/api/contracts/c1/sign?x=1", entry.URL)
	assert.Equal(t, "u1", entry.ActorID)
	assert.Equal(t, fiber.StatusCreated, entry.StatusCode)
	assert.Equal(t, "[LARGE_REQUEST_BODY_WITH_POSSIBLE_FILE_CONTENT]", entry.RequestBody)
	assert.Equal(t, `{"ok":true}`, entry.ResponseBody)
	assert.NotContains(t, entry.RequestHeaders, "secret-token")
	assert.Contains(t, entry.RequestHeaders, "[REDACTED]")
}

func TestIsLikelyBase64(t *testing.T) {
	assert.False(t, isLikelyBase64("short"))
	assert.True(t, isLikelyBase64(strings.Repeat("QUJD", 50)))
	assert.False(t, isLikelyBase64(strings.Repeat("{ \"a\": 1 }, ", 20)))
}
