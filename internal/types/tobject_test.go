package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullOrdersBeforeNonNull(t *testing.T) {
	assert.Equal(t, -1, Null.Compare(Int(0)))
	assert.Equal(t, 1, Int(0).Compare(Null))
	assert.Equal(t, 0, Null.Compare(Null))
}

func TestIncomparableAcrossKinds(t *testing.T) {
	assert.Equal(t, Incomparable, Int(1).Compare(PlainString("1")))
}

func TestApplyIsOperator(t *testing.T) {
	assert.True(t, Apply(OpIs, Null, Null).Bool())
	assert.False(t, Apply(OpIs, Null, Int(1)).Bool())
	assert.False(t, Apply(OpIs, Int(1), Int(1)).Bool())
}

func TestApplyNullPropagatesExceptIs(t *testing.T) {
	result := Apply(OpEqual, Null, Int(1))
	assert.True(t, result.IsNull())
}

func TestApplyIncomparableYieldsNull(t *testing.T) {
	result := Apply(OpGreater, Int(1), PlainString("x"))
	assert.True(t, result.IsNull())
}

func TestNumericParseAndCompare(t *testing.T) {
	a, err := ParseNumeric("12.340")
	require.NoError(t, err)
	b, err := ParseNumeric("12.34")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(b))
}

func TestNumericWidenTable(t *testing.T) {
	small := NewNumericFromInt64(42)
	assert.Equal(t, WidenInteger, small.Widen(DeclaredNumeric))

	big, err := ParseNumeric("99999999999999999999999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, WidenDouble, big.Widen(DeclaredNumeric))

	scaled, err := ParseNumeric("1.5")
	require.NoError(t, err)
	assert.Equal(t, WidenDouble, scaled.Widen(DeclaredNumeric))
}

func TestNumericWidenBit(t *testing.T) {
	assert.Equal(t, WidenBit, NewNumericFromInt64(0).Widen(DeclaredBit))
	assert.Equal(t, WidenBit, NewNumericFromInt64(1).Widen(DeclaredBit))
	assert.Equal(t, WidenTinyint, NewNumericFromInt64(100).Widen(DeclaredBit))
	assert.Equal(t, WidenInteger, NewNumericFromInt64(1000).Widen(DeclaredBit))
}

func TestNumericWidenReal(t *testing.T) {
	assert.Equal(t, WidenReal, NewNumericFromInt64(42).Widen(DeclaredReal))
	huge, err := ParseNumeric("1e300")
	require.NoError(t, err)
	assert.Equal(t, WidenDouble, huge.Widen(DeclaredReal))
}

func TestRowDataNotNullConstraint(t *testing.T) {
	def := &TableDef{Name: "t"}
	require.NoError(t, def.AddColumn(ColumnDef{Name: "a", Kind: KindNumeric, NotNull: true}))

	row := NewRowData(def)
	err := row.CheckNotNull()
	require.Error(t, err)

	require.NoError(t, row.SetValue("a", Int(1)))
	require.NoError(t, row.CheckNotNull())
}

func TestTableDefImmutableRejectsMutation(t *testing.T) {
	def := &TableDef{Name: "t"}
	def.MarkImmutable()
	err := def.AddColumn(ColumnDef{Name: "a"})
	require.Error(t, err)
}
