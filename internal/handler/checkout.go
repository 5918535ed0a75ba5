package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const maxCheckoutBody = 64 << 10

// BeginCheckout serves GET /api/checkout: a draft order prefilled from the
// account with the current cart total and the donation that would be added.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	draft, err := h.checkout.BeginCheckout(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	amount, allowed := h.checkout.DonationFor(draft.Total)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, draft)
		e.FieldStart("donation")
		e.ObjStart()
		e.FieldStart("amount")
		money(e, amount)
		e.FieldStart("available")
		e.Bool(allowed)
		e.ObjEnd()
		e.ObjEnd()
	})
}

// SubmitOrder serves POST /api/checkout.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCheckoutBody))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	draft, err := decodeDraft(body)
	if err != nil {
		zctx.From(r.Context()).Debug("Decode checkout form", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusBadRequest, "malformed order")
		return
	}

	res, err := h.checkout.SubmitOrder(r.Context(), draft, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, res.Order)
		e.FieldStart("donationSent")
		e.Bool(res.Donation != nil)
		e.ObjEnd()
	})
}

// ListOrders serves GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	orders, err := h.checkout.ListOrders(r.Context(), id.Username)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

// GetOrder serves GET /api/orders/{id}. Orders of other users are reported as
// missing.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	id, _ := auth.IdentityFrom(r.Context())

	o, err := h.checkout.GetOrder(r.Context(), orderID, id.Username)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}
