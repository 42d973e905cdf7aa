package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecimalPlaces(t *testing.T) {
	require.Equal(t, 0, DecimalPlaces(0))
	require.Equal(t, 1, DecimalPlaces(1))
	require.Equal(t, 2, DecimalPlaces(2))
	require.Equal(t, 3, DecimalPlaces(3))
}

func TestDoubleDecimalPlaces(t *testing.T) {
	require.Equal(t, 0, DoubleDecimalPlaces(FormatDoubleMin))
	require.Equal(t, 6, DoubleDecimalPlaces(FormatDoubleMax))
}

func TestFormatIDString(t *testing.T) {
	require.Equal(t, "float32", FormatFloat32.String())
	require.Equal(t, "double", FormatDoubleMin.String())
	require.Equal(t, "string", FormatString8.String())
	require.Equal(t, "int16", (FormatInt16Base + 2).String())
	require.Equal(t, "uint24", (FormatUint24Base + 1).String())
	require.Equal(t, "unknown", FormatID(0xee).String())
}
