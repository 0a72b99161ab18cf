package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalamart/storefront/internal/domain/offer"
)

type offerRequest struct {
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Value         float64    `json:"value"`
	BuyQuantity   int        `json:"buy_quantity,omitempty"`
	GetQuantity   int        `json:"get_quantity,omitempty"`
	MinOrderValue float64    `json:"min_order_value,omitempty"`
	MaxDiscount   float64    `json:"max_discount,omitempty"`
	ProductID     string     `json:"product_id,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	Active        *bool      `json:"active,omitempty"`
	AutoApply     *bool      `json:"auto_apply,omitempty"`
}

type offerResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Value         float64    `json:"value"`
	BuyQuantity   int        `json:"buy_quantity,omitempty"`
	GetQuantity   int        `json:"get_quantity,omitempty"`
	MinOrderValue float64    `json:"min_order_value,omitempty"`
	MaxDiscount   float64    `json:"max_discount,omitempty"`
	ProductID     string     `json:"product_id,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	Active        bool       `json:"active"`
	AutoApply     bool       `json:"auto_apply"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListOffers returns every offer, including inactive and expired ones.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	list, err := h.offers.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "list offers"))
		return
	}

	resp := make([]offerResponse, len(list))
	for i := range list {
		resp[i] = toOfferResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOffer returns a single offer.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferResponse(o))
}

// CreateOffer validates and persists a new offer. Malformed rules are
// rejected here so the pricing path can assume well-formed offers.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := fromOfferRequest(&req)
	o.ID = uuid.New().String()
	if err := offer.Validate(o); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.offers.Create(r.Context(), o); err != nil {
		h.writeDomainError(w, r, errors.Wrap(err, "create offer"))
		return
	}

	o.CreatedAt = h.now()
	writeJSON(w, http.StatusCreated, toOfferResponse(o))
}

// UpdateOffer validates and replaces an existing offer.
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := fromOfferRequest(&req)
	o.ID = r.PathValue("id")
	if err := offer.Validate(o); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.offers.Update(r.Context(), o); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	updated, err := h.offers.GetByID(r.Context(), o.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferResponse(updated))
}

// DeleteOffer removes an offer.
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.offers.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fromOfferRequest(req *offerRequest) *offer.Offer {
	o := &offer.Offer{
		Title:         req.Title,
		Type:          offer.Type(req.Type),
		Value:         decimal.NewFromFloat(req.Value),
		BuyQuantity:   req.BuyQuantity,
		GetQuantity:   req.GetQuantity,
		MinOrderValue: decimal.NewFromFloat(req.MinOrderValue),
		MaxDiscount:   decimal.NewFromFloat(req.MaxDiscount),
		ProductID:     req.ProductID,
		CategoryID:    req.CategoryID,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Active:        true,
		AutoApply:     true,
	}
	if req.Active != nil {
		o.Active = *req.Active
	}
	if req.AutoApply != nil {
		o.AutoApply = *req.AutoApply
	}
	return o
}

func toOfferResponse(o *offer.Offer) offerResponse {
	return offerResponse{
		ID:            o.ID,
		Title:         o.Title,
		Type:          string(o.Type),
		Value:         o.Value.InexactFloat64(),
		BuyQuantity:   o.BuyQuantity,
		GetQuantity:   o.GetQuantity,
		MinOrderValue: o.MinOrderValue.InexactFloat64(),
		MaxDiscount:   o.MaxDiscount.InexactFloat64(),
		ProductID:     o.ProductID,
		CategoryID:    o.CategoryID,
		StartsAt:      o.StartsAt,
		EndsAt:        o.EndsAt,
		Active:        o.Active,
		AutoApply:     o.AutoApply,
		CreatedAt:     o.CreatedAt,
	}
}
