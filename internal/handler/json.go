package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/order"
	"github.com/xenking/phoneplace/internal/domain/pricing"
	"github.com/xenking/phoneplace/internal/domain/product"
)

const maxBodySize = 64 << 10

// inputError is a malformed request.
type inputError struct {
	field string
	msg   string
}

func (e *inputError) Error() string {
	if e.field == "" {
		return e.msg
	}
	return e.field + ": " + e.msg
}

func badInput(field, msg string) error {
	return &inputError{field: field, msg: msg}
}

// decodeBody reads a JSON object and calls fn for every field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return badInput("", "read body")
	}
	if len(body) > maxBodySize {
		return badInput("", "request body too large")
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var ie *inputError
		if errors.As(err, &ie) {
			return ie
		}
		return badInput("", "invalid JSON body")
	}
	return nil
}

// readID accepts a positive integer id encoded as a JSON number or string.
func readID(d *jx.Decoder, field string) (int64, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		raw = s
	default:
		return 0, badInput(field, "must be an integer id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, badInput(field, "must be an integer id")
	}
	return id, nil
}

// readOptionalID is readID that maps null to nil.
func readOptionalID(d *jx.Decoder, field string) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	id, err := readID(d, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func readInt(d *jx.Decoder, field string) (int, error) {
	if d.Next() != jx.Number {
		return 0, badInput(field, "must be an integer")
	}
	n, err := d.Num()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, badInput(field, "must be an integer")
	}
	return v, nil
}

// readMoney accepts a decimal amount as a JSON number or string; null is nil.
func readMoney(d *jx.Decoder, field string) (*decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = s
	default:
		return nil, badInput(field, "must be an amount")
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, badInput(field, "must be an amount")
	}
	return &v, nil
}

func readString(d *jx.Decoder, field string) (string, error) {
	if d.Next() != jx.String {
		return "", badInput(field, "must be a string")
	}
	return d.Str()
}

func queryID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badInput(name, "must be an integer id")
	}
	return id, nil
}

// money writes an amount as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(pricing.Display(d)))
}

func optionalInt64(e *jx.Encoder, v *int64) {
	if v == nil {
		e.Null()
		return
	}
	e.Int64(*v)
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// errorResponse maps domain errors to an HTTP status, message and offending
// field.
func errorResponse(r *http.Request, err error) (code int, msg, field string) {
	var (
		ie  *inputError
		ae  *order.InvalidAddressError
		pm  *order.PriceMismatchError
		te  *order.InvalidTransitionError
		cfe *order.CreationFailedError
	)
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest, ie.msg, ie.field
	case errors.As(err, &ae):
		return http.StatusBadRequest, ae.Message, ae.Field
	case errors.As(err, &pm):
		return http.StatusBadRequest, pm.Error(), pm.Field
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, cart.ErrInvalidQuantity.Error(), "qty"
	case errors.Is(err, order.ErrPaymentMethodRequired), errors.Is(err, order.ErrPaymentMethodTooLong):
		return http.StatusBadRequest, err.Error(), "paymentMethod"
	case errors.Is(err, order.ErrUnknownStatus):
		return http.StatusBadRequest, err.Error(), "status"
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest, order.ErrEmptyCart.Error(), ""
	case errors.As(err, &te):
		return http.StatusConflict, te.Error(), "status"
	case errors.Is(err, order.ErrUnauthorized):
		if requestIdentity(r).IsAuthenticated() {
			return http.StatusForbidden, "forbidden", ""
		}
		return http.StatusUnauthorized, "authentication required", ""
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error(), "productId"
	case errors.Is(err, product.ErrVariantNotFound):
		return http.StatusNotFound, product.ErrVariantNotFound.Error(), "variantId"
	case errors.Is(err, cart.ErrCartNotFound):
		return http.StatusNotFound, cart.ErrCartNotFound.Error(), ""
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, cart.ErrItemNotFound.Error(), "itemId"
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, order.ErrOrderNotFound.Error(), ""
	case errors.As(err, &cfe):
		return http.StatusServiceUnavailable, "order could not be created, please retry", ""
	default:
		return http.StatusInternalServerError, "internal error", ""
	}
}

// writeError writes {"code","message","field"?} and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg, field := errorResponse(r, err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(msg)
		if field != "" {
			e.FieldStart("field")
			e.Str(field)
		}
		e.ObjEnd()
	})
}
