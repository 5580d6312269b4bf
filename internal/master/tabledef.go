package master

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"ponydb/internal/types"
)

// encodeTableDef serializes a TableDef into record 0 of a table's record
// store (spec §6: "record 0 reservation"), so the definition travels with
// the data files rather than needing a separate catalog lookup to open one.
func encodeTableDef(def *types.TableDef) []byte {
	var buf bytes.Buffer
	var magic [4]byte
	binary.BigEndian.PutUint32(magic[:], uint32(tableDefMagic))
	buf.Write(magic[:])
	writeLenPrefixed(&buf, []byte(def.Schema))
	writeLenPrefixed(&buf, []byte(def.Name))
	var colCount [4]byte
	binary.BigEndian.PutUint32(colCount[:], uint32(len(def.Columns)))
	buf.Write(colCount[:])
	for _, c := range def.Columns {
		writeLenPrefixed(&buf, []byte(c.Name))
		buf.WriteByte(byte(c.Kind))
		if c.NotNull {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeLenPrefixed(&buf, []byte(c.DefaultExpr))
		writeLenPrefixed(&buf, []byte(c.SchemeName))
		buf.WriteByte(byte(c.Declared))
	}
	return buf.Bytes()
}

// decodeTableDef parses a blob written by encodeTableDef. Column ordinals
// are reassigned by position rather than trusted verbatim from disk.
func decodeTableDef(blob []byte) (*types.TableDef, error) {
	r := bytes.NewReader(blob)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("master: read table-def magic: %w", err)
	}
	if int32(binary.BigEndian.Uint32(magic[:])) != tableDefMagic {
		return nil, fmt.Errorf("master: bad table-def magic")
	}
	schema, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("master: read table-def schema: %w", err)
	}
	name, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("master: read table-def name: %w", err)
	}
	var colCountBuf [4]byte
	if _, err := io.ReadFull(r, colCountBuf[:]); err != nil {
		return nil, fmt.Errorf("master: read table-def column count: %w", err)
	}
	n := int(binary.BigEndian.Uint32(colCountBuf[:]))
	def := &types.TableDef{Schema: string(schema), Name: string(name)}
	for i := 0; i < n; i++ {
		colName, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("master: read column %d name: %w", i, err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("master: read column %d kind: %w", i, err)
		}
		notNullByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("master: read column %d not-null flag: %w", i, err)
		}
		defaultExpr, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("master: read column %d default: %w", i, err)
		}
		schemeName, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("master: read column %d scheme name: %w", i, err)
		}
		declaredByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("master: read column %d declared type: %w", i, err)
		}
		if err := def.AddColumn(types.ColumnDef{
			Name:        string(colName),
			Kind:        types.Kind(kindByte),
			NotNull:     notNullByte == 1,
			DefaultExpr: string(defaultExpr),
			SchemeName:  string(schemeName),
			Declared:    types.Declared(declaredByte),
		}); err != nil {
			return nil, fmt.Errorf("master: rebuild column %d: %w", i, err)
		}
	}
	return def, nil
}
