package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/phoneplace/internal/domain/order"
)

// PlaceOrder checks out the caller's cart.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address":
			req.Address, err = decodeAddress(d)
		case "paymentMethod":
			req.PaymentMethod, err = readString(d, key)
		case "total":
			req.Total, err = readMoney(d, key)
		case "deliveryFee":
			req.DeliveryFee, err = readMoney(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), requestIdentity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(o.ID)
		e.FieldStart("total")
		money(e, o.Total)
		e.ObjEnd()
	})
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	if d.Next() != jx.Object {
		return a, badInput("address", "must be an object")
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			dst *string
			err error
		)
		switch key {
		case "name":
			dst = &a.Name
		case "phone":
			dst = &a.Phone
		case "line":
			dst = &a.Line
		case "city":
			dst = &a.City
		default:
			return d.Skip()
		}
		*dst, err = readString(d, "address."+key)
		return err
	})
	return a, err
}

// GetOrder returns one order with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, order.ErrOrderNotFound)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), requestIdentity(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// ListOrders returns the authenticated caller's order history.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), requestIdentity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrders(e, orders)
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("userId")
	optionalInt64(e, o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("deliveryFee")
	money(e, o.DeliveryFee)
	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethod)

	e.FieldStart("address")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Address.Name)
	e.FieldStart("phone")
	e.Str(o.Address.Phone)
	e.FieldStart("line")
	e.Str(o.Address.Line)
	e.FieldStart("city")
	e.Str(o.Address.City)
	e.ObjEnd()

	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("updatedAt")
	e.Str(o.UpdatedAt.UTC().Format(time.RFC3339))

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(it.ID)
		e.FieldStart("productId")
		e.Int64(it.ProductID)
		e.FieldStart("variantId")
		optionalInt64(e, it.VariantID)
		e.FieldStart("qty")
		e.Int(it.Qty)
		e.FieldStart("priceAtPurchase")
		money(e, it.PriceAtPurchase)
		e.FieldStart("lineTotal")
		money(e, it.LineTotal())
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("slug")
		e.Str(it.Slug)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
