package render

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var globalVars fiber.Map

func InitValues(data fiber.Map) {
	globalVars = data
}

func NewHtmlEngine(templateDir string) fiber.Views {
	var engine *html.Engine
	if templateDir != "" {
		engine = html.NewFileSystem(http.Dir(templateDir), ".html")
	} else {
		renderFS, _ := fs.Sub(templateFS, "templates")
		engine = html.NewFileSystem(http.FS(renderFS), ".html")
	}
	engine.AddFunc("join", strings.Join)
	engine.AddFunc("maskToken", maskToken)
	return engine
}

func RenderHomePage(ctx *fiber.Ctx, data HomePageData) error {
	return ctx.Render("home", fiber.Map{
		"siteName": globalVars["siteName"],
		"me":       data.Me,
		"loggedIn": data.LoggedIn,
		"flashes":  data.Flashes,
	})
}

func RenderLogin(ctx *fiber.Ctx, data LoginPageData) error {
	return ctx.Render("login", fiber.Map{
		"siteName":  globalVars["siteName"],
		"csrfToken": data.CSRFToken,
		"redirect":  data.Redirect,
		"flashes":   data.Flashes,
	})
}

func RenderRelMe(ctx *fiber.Ctx, data RelMePageData) error {
	return ctx.Render("rel", fiber.Map{
		"siteName":       globalVars["siteName"],
		"domain":         data.Domain,
		"me":             data.Me,
		"links":          data.Links,
		"githubOAuthURL": data.OAuthLoginURLs["github"],
		"errorMsg":       data.ErrorMsg,
		"flashes":        data.Flashes,
	})
}

func RenderConsent(ctx *fiber.Ctx, data ConsentPageData) error {
	appName := data.ClientID
	var appLogo, appURL, appSummary string
	if data.App != nil {
		if data.App.Name != "" {
			appName = data.App.Name
		}
		appLogo, appURL, appSummary = data.App.Logo, data.App.URL, data.App.Summary
	}
	return ctx.Render("consent", fiber.Map{
		"siteName":     globalVars["siteName"],
		"csrfToken":    data.CSRFToken,
		"me":           data.Me,
		"clientID":     data.ClientID,
		"redirectURI":  data.RedirectURI,
		"responseType": data.ResponseType,
		"state":        data.State,
		"challenge":    data.Challenge,
		"method":       data.Method,
		"scopes":       data.Scopes,
		"appName":      appName,
		"appLogo":      appLogo,
		"appURL":       appURL,
		"appSummary":   appSummary,
	})
}

func RenderIssued(ctx *fiber.Ctx, data IssuedPageData) error {
	return ctx.Render("issued", fiber.Map{
		"siteName":  globalVars["siteName"],
		"csrfToken": data.CSRFToken,
		"me":        data.Me,
		"tokens":    data.Tokens,
		"tickets":   data.Tickets,
		"issued":    data.Issued,
		"flashes":   data.Flashes,
	})
}

func RenderToken(ctx *fiber.Ctx, data TokenPageData) error {
	return ctx.Render("token", fiber.Map{
		"siteName":  globalVars["siteName"],
		"csrfToken": data.CSRFToken,
		"token":     data.Token,
	})
}

func RenderError(ctx *fiber.Ctx, data ErrorPageData) error {
	return ctx.Render("error", fiber.Map{
		"siteName": globalVars["siteName"],
		"code":     data.Code,
		"message":  data.Message,
	})
}
