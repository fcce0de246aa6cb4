package server

import (
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError writes err with the status of its AppError code. Anything that
// is not an AppError is logged and reported as INTERNAL_ERROR.
func respondError(c *fiber.Ctx, err error) error {
	if appErr, ok := models.AsAppError(err); ok {
		return models.RespondWithError(c, appErr.Status(), appErr)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "request failed",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// pageRequest is the parsed ?page=&page_size= of a listing.
type pageRequest struct {
	Page     int
	PageSize int
}

// parsePageRequest reads page (default 1) and page_size. A non-numeric page
// yields Page 0, which the service rejects as an invalid page; a bad page_size
// falls back to the default.
func parsePageRequest(c *fiber.Ctx) pageRequest {
	req := pageRequest{Page: 1, PageSize: service.DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		req.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			req.PageSize = n
		}
	}
	return req
}

// pageURL returns the absolute URL of the current request with page replaced.
// Page 1 is expressed by dropping the parameter.
func pageURL(c *fiber.Ctx, page int) string {
	u, err := url.Parse(c.BaseURL() + c.OriginalURL())
	if err != nil {
		return ""
	}
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
