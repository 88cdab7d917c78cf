package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoneyFromInt(100)
	b := MustMoneyFromString("50.25")

	assert.Equal(t, "150.25", a.Add(b).String())
	assert.Equal(t, "49.75", a.Sub(b).String())
	assert.Equal(t, "300.00", a.MulInt(3).String())
	assert.Equal(t, "-100.00", a.Neg().String())
	assert.Equal(t, "100.00", a.Neg().Abs().String())
}

func TestMoneyCompare(t *testing.T) {
	assert.Equal(t, 0, NewMoneyFromInt(10).Compare(MustMoneyFromString("10.00")))
	assert.Equal(t, -1, NewMoneyFromInt(9).Compare(NewMoneyFromInt(10)))
	assert.Equal(t, 1, NewMoneyFromInt(11).Compare(NewMoneyFromInt(10)))
	assert.True(t, Zero().IsZero())
	assert.True(t, NewMoneyFromInt(-1).IsNegative())
}

func TestMoneyJSON(t *testing.T) {
	// Amounts travel as strings so precision survives the wire.
	data, err := json.Marshal(MustMoneyFromString("1234.56"))
	require.NoError(t, err)
	assert.Equal(t, `"1234.56"`, string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"99.90"`), &m))
	assert.True(t, MustMoneyFromString("99.90").Equal(m))

	assert.Error(t, json.Unmarshal([]byte(`"not money"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`12`), &m), "bare numbers are rejected")
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("250.75"))
	assert.Equal(t, "250.75", m.String())

	require.NoError(t, m.Scan([]byte("10")))
	assert.Equal(t, "10.00", m.String())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(struct{}{}))
}
