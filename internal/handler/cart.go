package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/jx"
)

// GetCart serves GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner := h.cartOwner(w, r)
	v, err := h.carts.View(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCartView(e, v)
	})
}

// AddCartItem serves POST /api/cart/items/{productId}: one more unit of the
// product, at its current catalog price.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	owner := h.cartOwner(w, r)
	ctx := r.Context()

	it, err := h.carts.AddItem(ctx, owner, productID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	count, err := h.carts.Count(ctx, owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("item")
		encodeCartItem(e, it)
		e.FieldStart("count")
		e.Int(count)
		e.ObjEnd()
	})
}

// RemoveCartItem serves DELETE /api/cart/items/{itemId}: one unit less of the
// line, dropping it at zero.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}
	owner := h.cartOwner(w, r)

	res, err := h.carts.RemoveItem(r.Context(), owner, itemID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	title := res.ProductTitle
	if title == "" {
		title = "Item"
	}
	msg := fmt.Sprintf("%s has been removed from your shopping cart.", title)
	if res.Remaining > 0 {
		msg = "1 copy of " + msg
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(msg)
		e.FieldStart("itemId")
		e.Int64(res.ItemID)
		e.FieldStart("remaining")
		e.Int(res.Remaining)
		e.FieldStart("count")
		e.Int(res.Count)
		e.FieldStart("summary")
		encodeSummary(e, res.Summary)
		e.ObjEnd()
	})
}
