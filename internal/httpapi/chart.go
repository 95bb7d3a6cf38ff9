package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/internal/chart"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// PostChart handles POST /chart.
func (h *Handler) PostChart(payload any, c *fiber.Ctx) error {
	in := payload.(*ChartRequest)

	if h.Chart == nil {
		return netHTTP.InternalServerError(c, "", "Chart Unavailable", "no chart rendering backend is configured")
	}

	url, err := h.Chart.Render(c.UserContext(), in.Code)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.Created(c, ChartResponse{URL: url})
}

// GetChart handles GET /chart/{file}.
func (h *Handler) GetChart(c *fiber.Ctx) error {
	if h.Chart == nil {
		return netHTTP.InternalServerError(c, "", "Chart Unavailable", "no chart rendering backend is configured")
	}

	data, err := h.Chart.Open(c.UserContext(), c.Params("file"))
	if err != nil {
		var notFound chart.NotFoundError
		if errors.As(err, &notFound) {
			return netHTTP.NotFound(c, "", "Chart Not Found", notFound.Error())
		}

		return netHTTP.WithError(c, err)
	}

	return c.Send(data)
}
