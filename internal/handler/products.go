package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ProductHandler serves the public product catalogue.
type ProductHandler struct {
	Products ProductStore
}

func NewProductHandler(products ProductStore) *ProductHandler {
	return &ProductHandler{Products: products}
}

// List returns public products, optionally filtered by ?type=.
func (h *ProductHandler) List(c echo.Context) error {
	limit, offset := page(c)
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Products.ListPublic(ctx, c.QueryParam("type"), limit, offset)
	if err != nil {
		return storeError(c, err, "product")
	}
	return ok(c, http.StatusOK, echo.Map{"items": items, "count": len(items)})
}
