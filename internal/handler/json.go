package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/cart"
)

const maxBodySize = 1 << 20

var errEmptyBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// money renders d rounded to two places as a JSON number. Amounts are kept
// exact everywhere else.
func money(e *jx.Encoder, field string, d decimal.Decimal) {
	e.FieldStart(field)
	e.Raw([]byte(d.StringFixed(2)))
}

func optStr(e *jx.Encoder, field, v string) {
	if v == "" {
		return
	}
	e.FieldStart(field)
	e.Str(v)
}

// decodeObject reads the request body as a single JSON object, calling fn
// for every field.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.New("expected number")
	}
}

// keyRequest is the item key carried by cart item requests.
type keyRequest struct {
	cart.Key
	WarehouseID string
}

// decodeKeyField handles the key fields shared by item requests. It reports
// false for keys it does not own.
func (k *keyRequest) decodeKeyField(d *jx.Decoder, key string) (bool, error) {
	var dst *string
	switch key {
	case "productId":
		dst = &k.ProductID
	case "variationId":
		dst = &k.VariationID
	case "packagingId":
		dst = &k.PackagingID
	case "packagingVariationId":
		dst = &k.PackagingVariationID
	case "warehouseId":
		dst = &k.WarehouseID
	default:
		return false, nil
	}
	v, err := d.Str()
	if err != nil {
		return true, err
	}
	*dst = v
	return true, nil
}

func (k *keyRequest) validate() error {
	if k.ProductID == "" {
		return errors.New("productId is required")
	}
	if k.PackagingID == "" {
		return errors.New("packagingId is required")
	}
	return nil
}

func decodeKey(r *http.Request) (keyRequest, error) {
	var req keyRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if ok, err := req.decodeKeyField(d, key); ok {
			return err
		}
		return d.Skip()
	})
	if err != nil {
		return req, err
	}
	return req, req.validate()
}
