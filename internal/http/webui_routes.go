package http

import (
	"io/fs"

	"github.com/gofiber/fiber/v2"

	webui "medassist/frontend"
)

// webUIAssets maps each served path to its embedded file and content type.
// Anything else falls through to the JSON 404 handler.
var webUIAssets = map[string]struct{ file, contentType string }{
	"/":        {"index.html", fiber.MIMETextHTMLCharsetUTF8},
	"/app.js":  {"app.js", fiber.MIMEApplicationJavaScriptCharsetUTF8},
	"/app.css": {"app.css", "text/css; charset=utf-8"},
}

func registerWebUIRoutes(app *fiber.App) error {
	dist := webui.Dist()
	for route, asset := range webUIAssets {
		payload, err := fs.ReadFile(dist, asset.file)
		if err != nil {
			return err
		}
		contentType := asset.contentType
		app.Get(route, func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderCacheControl, "no-cache")
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(payload)
		})
	}
	return nil
}
