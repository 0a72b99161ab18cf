package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/kalamart/storefront/internal/domain/offer"
	"github.com/kalamart/storefront/internal/domain/product"
)

type imageResponse struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

type offerInfoResponse struct {
	OfferID         string  `json:"offer_id"`
	Title           string  `json:"title"`
	Label           string  `json:"label"`
	Discount        float64 `json:"discount"`
	DiscountedPrice float64 `json:"discounted_price"`
}

type productResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Price      float64            `json:"price"`
	CategoryID string             `json:"category_id"`
	Image      imageResponse      `json:"image"`
	Offer      *offerInfoResponse `json:"offer,omitempty"`
}

// ListProducts returns the catalog with the active offer resolved per product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list products"))
		return
	}
	offers, err := h.offers.ListActive(ctx, h.now())
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list active offers"))
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p, offers)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns a single product with its resolved offer.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.products.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	offers, err := h.offers.ListActive(ctx, h.now())
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list active offers"))
		return
	}

	writeJSON(w, http.StatusOK, h.toProductResponse(*p, offers))
}

func (h *Handler) toProductResponse(p product.Product, offers []offer.Offer) productResponse {
	resp := productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price.InexactFloat64(),
		CategoryID: p.CategoryID,
		Image: imageResponse{
			Thumbnail: h.imageURL(p.Image.Thumbnail),
			Mobile:    h.imageURL(p.Image.Mobile),
			Tablet:    h.imageURL(p.Image.Tablet),
			Desktop:   h.imageURL(p.Image.Desktop),
		},
	}

	if po := offer.Resolve(offer.Line{
		ProductID:  p.ID,
		CategoryID: p.CategoryID,
		Price:      p.Price,
	}, offers); po != nil {
		resp.Offer = &offerInfoResponse{
			OfferID:         po.Offer.ID,
			Title:           po.Offer.Title,
			Label:           po.Label,
			Discount:        po.Discount.InexactFloat64(),
			DiscountedPrice: po.DiscountedPrice.InexactFloat64(),
		}
	}
	return resp
}

// imageURL prepends the configured base URL to relative image paths. Absolute
// URLs pass through untouched.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
