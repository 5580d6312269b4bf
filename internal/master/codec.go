package master

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"time"

	"ponydb/internal/types"
)

// encodeRow serializes values as a flat byte buffer; the column count and
// types come from the table's definition, so no schema is repeated here.
func encodeRow(values []types.TObject) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		encodeTObject(&buf, v)
	}
	return buf.Bytes()
}

func decodeRow(buf []byte, numCols int) ([]types.TObject, error) {
	r := bytes.NewReader(buf)
	out := make([]types.TObject, numCols)
	for i := 0; i < numCols; i++ {
		v, err := decodeTObject(r)
		if err != nil {
			return nil, fmt.Errorf("master: decode column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func encodeTObject(buf *bytes.Buffer, v types.TObject) {
	buf.WriteByte(byte(v.Kind()))
	switch v.Kind() {
	case types.KindNull:
	case types.KindBoolean:
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case types.KindNumeric:
		n := v.Num()
		var scaleBuf [4]byte
		binary.BigEndian.PutUint32(scaleBuf[:], uint32(n.Scale()))
		buf.Write(scaleBuf[:])
		unscaled := n.Unscaled()
		sign := byte(0)
		if unscaled.Sign() < 0 {
			sign = 1
		}
		buf.WriteByte(sign)
		mag := unscaled.Bytes()
		writeLenPrefixed(buf, mag)
	case types.KindString:
		s := v.Text()
		writeLenPrefixed(buf, []byte(s.Value))
		writeLenPrefixed(buf, []byte(s.Locale))
		buf.WriteByte(byte(s.Strength))
		if s.Decompose {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case types.KindDate:
		d := v.Time()
		buf.WriteByte(byte(d.Variant))
		var tbuf [8]byte
		binary.BigEndian.PutUint64(tbuf[:], uint64(d.When.UnixNano()))
		buf.Write(tbuf[:])
	case types.KindBinary:
		writeLenPrefixed(buf, v.Raw())
	}
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(b)))
	buf.Write(lbuf[:])
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lbuf [4]byte
	if _, err := io.ReadFull(r, lbuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lbuf[:])
	out := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeTObject(r *bytes.Reader) (types.TObject, error) {
	kb, err := r.ReadByte()
	if err != nil {
		return types.TObject{}, err
	}
	switch types.Kind(kb) {
	case types.KindNull:
		return types.Null, nil
	case types.KindBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return types.TObject{}, err
		}
		return types.Boolean(b == 1), nil
	case types.KindNumeric:
		var scaleBuf [4]byte
		if _, err := io.ReadFull(r, scaleBuf[:]); err != nil {
			return types.TObject{}, err
		}
		scale := int32(binary.BigEndian.Uint32(scaleBuf[:]))
		sign, err := r.ReadByte()
		if err != nil {
			return types.TObject{}, err
		}
		mag, err := readLenPrefixed(r)
		if err != nil {
			return types.TObject{}, err
		}
		unscaled := new(big.Int).SetBytes(mag)
		if sign == 1 {
			unscaled.Neg(unscaled)
		}
		return types.NumericValue(types.NewNumeric(unscaled, scale)), nil
	case types.KindString:
		val, err := readLenPrefixed(r)
		if err != nil {
			return types.TObject{}, err
		}
		locale, err := readLenPrefixed(r)
		if err != nil {
			return types.TObject{}, err
		}
		strength, err := r.ReadByte()
		if err != nil {
			return types.TObject{}, err
		}
		decompose, err := r.ReadByte()
		if err != nil {
			return types.TObject{}, err
		}
		return types.Str(types.String{
			Value:     string(val),
			Locale:    string(locale),
			Strength:  types.CollationStrength(strength),
			Decompose: decompose == 1,
		}), nil
	case types.KindDate:
		variant, err := r.ReadByte()
		if err != nil {
			return types.TObject{}, err
		}
		var tbuf [8]byte
		if _, err := io.ReadFull(r, tbuf[:]); err != nil {
			return types.TObject{}, err
		}
		nanos := int64(binary.BigEndian.Uint64(tbuf[:]))
		return types.DateValue(types.Date{Variant: types.DateVariant(variant), When: time.Unix(0, nanos).UTC()}), nil
	case types.KindBinary:
		b, err := readLenPrefixed(r)
		if err != nil {
			return types.TObject{}, err
		}
		return types.Bytes(b), nil
	default:
		return types.TObject{}, fmt.Errorf("master: unknown type tag %d", kb)
	}
}
