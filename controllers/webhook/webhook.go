package webhook

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jibzus/bluefleet-sub001/controllers"
	"github.com/jibzus/bluefleet-sub001/services/webhook"
)

type WebhookController struct {
	gateway      *webhook.Gateway
	maxBodyBytes int
}

func NewWebhookController(gateway *webhook.Gateway, maxBodyBytes int) *WebhookController {
	return &WebhookController{gateway: gateway, maxBodyBytes: maxBodyBytes}
}

// Receive handles a payment provider delivery. The raw body is used as sent;
// re-encoding it would break the signature.
func (wc *WebhookController) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if wc.maxBodyBytes > 0 && len(body) > wc.maxBodyBytes {
		return controllers.Send(c, fiber.StatusRequestEntityTooLarge, "Payload too large", nil)
	}
	raw := append([]byte(nil), body...)

	headers := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	result, err := wc.gateway.Ingest(c.UserContext(), headers, raw)
	if err != nil {
		return controllers.Fail(c, err)
	}
	return controllers.Send(c, fiber.StatusOK, "Webhook "+string(result.Outcome), result)
}
