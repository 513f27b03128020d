package server

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"newsadvance/internal/models"
	"newsadvance/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const localsJSONBody = "jsonBody"

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The message is derived from the parameter name ("articleId" -> "Invalid article ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// queryPage reads ?page=N. Missing or malformed values mean page 1; range
// clamping is left to the services.
func queryPage(c *fiber.Ctx) int {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return 1
	}
	return page
}

// respondErr writes err with the status of its AppError code.
func respondErr(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.HTTPStatus(err), err)
}

// viewerFrom returns the principal attached by the auth middleware, or nil
// for anonymous requests.
func viewerFrom(c *fiber.Ctx) *service.Viewer {
	v, _ := c.Locals(localsViewer).(*service.Viewer)
	return v
}

// bodyField returns a top-level field of a JSON or form-encoded body as a
// string. JSON numbers and booleans are formatted in their literal form.
func bodyField(c *fiber.Ctx, key string) (string, bool, error) {
	if !strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEApplicationJSON) {
		raw := c.FormValue(key)
		if raw == "" && c.Request().PostArgs().Peek(key) == nil {
			return "", false, nil
		}
		return raw, true, nil
	}

	body, err := jsonBody(c)
	if err != nil {
		return "", false, err
	}
	v, ok := body[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	default:
		return "", false, models.NewValidationError("Invalid value for " + key)
	}
}

func jsonBody(c *fiber.Ctx) (map[string]interface{}, error) {
	if cached, ok := c.Locals(localsJSONBody).(map[string]interface{}); ok {
		return cached, nil
	}
	body := map[string]interface{}{}
	if len(c.Body()) > 0 {
		if err := c.App().Config().JSONDecoder(c.Body(), &body); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
	}
	c.Locals(localsJSONBody, body)
	return body, nil
}

// bodyString is bodyField with absent fields read as "".
func bodyString(c *fiber.Ctx, key string) (string, error) {
	v, _, err := bodyField(c, key)
	return v, err
}

// parseTruthy reports whether raw is one of the accepted spellings of true.
// Anything else, including an absent value, is false.
func parseTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
