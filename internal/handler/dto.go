package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// writeJSON renders the body produced by enc with the given status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money renders d with two decimals as a JSON number.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func (h *Handler) imageURL(path string) string {
	if h.cfg.ImageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("sku")
	e.Str(p.SKU)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("imageUrl")
	e.Str(h.imageURL(p.ImageURL))
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s pricing.Summary) {
	e.ObjStart()
	e.FieldStart("subTotal")
	money(e, s.SubTotal)
	e.FieldStart("shipping")
	money(e, s.Shipping)
	e.FieldStart("tax")
	money(e, s.Tax)
	e.FieldStart("total")
	money(e, s.Total)
	e.ObjEnd()
}

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(it.ID)
	e.FieldStart("productId")
	e.Int64(it.ProductID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("unitPrice")
	money(e, it.UnitPrice)
	e.FieldStart("createdAt")
	e.Str(it.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeCartView(e *jx.Encoder, v *cart.View) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range v.Items {
		encodeCartItem(e, it)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(v.Count)
	e.FieldStart("summary")
	encodeSummary(e, v.Summary)
	e.ObjEnd()
}

func encodeContactFields(e *jx.Encoder, c checkout.Contact) {
	for _, f := range []struct{ name, value string }{
		{"name", c.Name},
		{"email", c.Email},
		{"phone", c.Phone},
		{"address", c.Address},
		{"city", c.City},
		{"state", c.State},
		{"postalCode", c.PostalCode},
		{"country", c.Country},
	} {
		e.FieldStart(f.name)
		e.Str(f.value)
	}
}

func encodeOrder(e *jx.Encoder, o *checkout.Order) {
	e.ObjStart()
	if o.ID != 0 {
		e.FieldStart("id")
		e.Int64(o.ID)
	}
	e.FieldStart("username")
	e.Str(o.Username)
	if !o.OrderDate.IsZero() {
		e.FieldStart("orderDate")
		e.Str(o.OrderDate.UTC().Format(time.RFC3339))
	}
	encodeContactFields(e, o.Contact)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("donated")
	e.Bool(o.Donated)
	if o.DonationAmount.IsPositive() {
		e.FieldStart("donationAmount")
		money(e, o.DonationAmount)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	if len(o.Lines) > 0 {
		e.FieldStart("lines")
		e.ArrStart()
		for _, l := range o.Lines {
			e.ObjStart()
			e.FieldStart("productId")
			e.Int64(l.ProductID)
			e.FieldStart("quantity")
			e.Int(l.Quantity)
			e.FieldStart("unitPrice")
			money(e, l.UnitPrice)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

// decodeDraft reads the checkout form. Unknown fields, including attempts to
// set the username, total or date, are ignored.
func decodeDraft(body []byte) (checkout.Order, error) {
	var o checkout.Order
	if len(body) == 0 {
		return o, errors.New("empty body")
	}
	str := map[string]*string{
		"name":       &o.Name,
		"email":      &o.Email,
		"phone":      &o.Phone,
		"address":    &o.Address,
		"city":       &o.City,
		"state":      &o.State,
		"postalCode": &o.PostalCode,
		"country":    &o.Country,
	}
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if dst, ok := str[key]; ok {
			v, err := d.Str()
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			*dst = v
			return nil
		}
		if key == "donated" {
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, `field "donated"`)
			}
			o.Donated = v
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		return checkout.Order{}, err
	}
	return o, nil
}
