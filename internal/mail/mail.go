package mail

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var templateFS embed.FS

func newHtmlEngine() *html.Engine {
	mailFS, _ := fs.Sub(templateFS, "templates")
	return html.NewFileSystem(http.FS(mailFS), ".html")
}

func renderHTML(engine *html.Engine, templateName string, vars fiber.Map) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := engine.Render(buf, templateName, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
