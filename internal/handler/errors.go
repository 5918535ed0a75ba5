package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/user"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// writeDomainError maps domain errors to API responses. Anything unknown is
// logged and reported as 500 without details.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusBadRequest)
			e.FieldStart("message")
			e.Str("invalid order")
			e.FieldStart("fields")
			e.ObjStart()
			keys := make([]string, 0, len(verr.Fields))
			for k := range verr.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				e.FieldStart(k)
				e.Str(verr.Fields[k])
			}
			e.ObjEnd()
			e.FieldStart("order")
			encodeOrder(e, &verr.Draft)
			e.ObjEnd()
		})
		return
	}

	var ferr *checkout.FailedError
	if errors.As(err, &ferr) {
		zctx.From(r.Context()).Error("Checkout failed", zap.Error(ferr.Err))
		writeJSON(w, http.StatusConflict, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusConflict)
			e.FieldStart("message")
			e.Str("order could not be placed, please try again")
			e.FieldStart("order")
			encodeOrder(e, &ferr.Draft)
			e.ObjEnd()
		})
		return
	}

	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, checkout.ErrOrderNotFound),
		errors.Is(err, user.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, checkout.ErrEmptyCart):
		httpmiddleware.WriteError(w, http.StatusConflict, checkout.ErrEmptyCart.Error())
	case errors.Is(err, cart.ErrEmptyOwner):
		httpmiddleware.WriteError(w, http.StatusBadRequest, cart.ErrEmptyOwner.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("route", httpmiddleware.RoutePattern(r)),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage returns the message of the sentinel at the bottom of err.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
