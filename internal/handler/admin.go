package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

// AdminListOrders returns the most recent orders across all customers.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, badInput("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	orders, err := h.orders.ListOrdersForAdmin(r.Context(), requestIdentity(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrders(e, orders)
	})
}

// AdminSetStatus moves an order through its lifecycle.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var (
		orderID int64
		status  string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			orderID, err = readID(d, key)
		case "status":
			status, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	switch {
	case err != nil:
	case orderID == 0:
		err = badInput("orderId", "is required")
	case status == "":
		err = badInput("status", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetStatus(r.Context(), requestIdentity(r), orderID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// AdminStats returns store totals for the dashboard.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context(), requestIdentity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orders")
		e.Int64(st.Orders)
		e.FieldStart("revenue")
		money(e, st.Revenue)
		e.FieldStart("customers")
		e.Int64(st.Customers)
		e.FieldStart("products")
		e.Int64(st.Products)
		e.ObjEnd()
	})
}
