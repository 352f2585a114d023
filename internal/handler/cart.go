package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/pricing"
)

// GetCart returns the caller's cart lines and price summary.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.View(r.Context(), requestIdentity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeCart(e, v)
	})
}

// AddToCart adds a product, merging with an existing line.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	req := cart.AddItemRequest{Qty: 1}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = readID(d, key)
		case "variantId":
			req.VariantID, err = readOptionalID(d, key)
		case "qty":
			req.Qty, err = readInt(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && req.ProductID == 0 {
		err = badInput("productId", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.carts.AddItem(r.Context(), requestIdentity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if res.Inserted {
		code = http.StatusCreated
	}
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("itemId")
		e.Int64(res.ItemID)
		e.FieldStart("qty")
		e.Int(res.Qty)
		e.ObjEnd()
	})
}

// UpdateCartItem sets the quantity of a cart line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		itemID int64
		qty    *int
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "itemId":
			id, err := readID(d, key)
			itemID = id
			return err
		case "qty":
			n, err := readInt(d, key)
			qty = &n
			return err
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
	case itemID == 0:
		err = badInput("itemId", "is required")
	case qty == nil:
		err = badInput("qty", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), requestIdentity(r), itemID, *qty); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem deletes a cart line. Deleting a missing line succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := queryID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.RemoveItem(r.Context(), requestIdentity(r), itemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) encodeCart(e *jx.Encoder, v *cart.View) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range v.Lines {
		unit := l.UnitPrice()
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(l.ItemID)
		e.FieldStart("productId")
		e.Int64(l.ProductID)
		e.FieldStart("variantId")
		optionalInt64(e, l.VariantID)
		e.FieldStart("qty")
		e.Int(l.Qty)
		e.FieldStart("title")
		e.Str(l.Title)
		e.FieldStart("slug")
		e.Str(l.Slug)
		e.FieldStart("image")
		e.Str(h.imageURL(l.Image))
		e.FieldStart("price")
		money(e, l.Price)
		e.FieldStart("discount")
		e.Int(l.Discount)
		e.FieldStart("unitPrice")
		money(e, unit)
		e.FieldStart("lineTotal")
		money(e, pricing.LineTotal(pricing.Line{Price: l.Price, Discount: l.Discount, Qty: l.Qty}))
		e.ObjEnd()
	}
	e.ArrEnd()

	s := v.Summary
	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("items")
	e.Int(s.Items)
	e.FieldStart("subtotal")
	money(e, s.Subtotal)
	e.FieldStart("deliveryFee")
	money(e, s.DeliveryFee)
	e.FieldStart("total")
	money(e, s.Total)
	e.ObjEnd()
	e.ObjEnd()
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.cfg.ImageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
