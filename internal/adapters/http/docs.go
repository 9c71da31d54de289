package http

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>polysync API docs</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// DefaultOpenAPIPath is where the OpenAPI document lives relative to the
// working directory.
const DefaultOpenAPIPath = "api/openapi.yaml"

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml. The document is read once; if it is missing the UI is
// still served and the document route answers 404.
func SetupDocs(app *fiber.App, specPath string) {
	if specPath == "" {
		specPath = DefaultOpenAPIPath
	}
	spec, err := os.ReadFile(specPath)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", specPath, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if spec == nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(spec)
	})
}
