package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
)

// CartCookie names the cookie holding an anonymous cart owner key.
const CartCookie = "cart_id"

// cartOwner returns the cart owner key of r: the authenticated user ID, or the
// cart cookie, which is issued when missing or malformed.
func (h *Handler) cartOwner(w http.ResponseWriter, r *http.Request) string {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		return id.UserID
	}
	if c, err := r.Cookie(CartCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	owner := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookie,
		Value:    owner,
		Path:     "/",
		MaxAge:   int(h.cfg.CartCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return owner
}
