package handlers

import (
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

func redirect(ctx *fiber.Ctx, location string, params fiber.Map, status ...int) error {
	url, err := url.Parse(location)
	if err != nil {
		return err
	}
	query := url.Query()
	for key, value := range params {
		if value != nil && value != "" {
			query.Set(key, fmt.Sprintf("%v", value))
		}
	}
	url.RawQuery = query.Encode()
	return ctx.Redirect(url.String(), status...)
}

// redirectSeeOther answers a form post with a redirect the browser follows
// with GET.
func redirectSeeOther(ctx *fiber.Ctx, location string) error {
	return ctx.Redirect(location, fiber.StatusSeeOther)
}
