package shared

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodSelector(t *testing.T) {
	assert.Nil(t, MethodSelector(nil))
	assert.Nil(t, MethodSelector([]byte{0xa9, 0x05, 0x9c}))

	sel := MethodSelector([]byte{0xa9, 0x05, 0x9c, 0xbb, 0x00, 0x01})
	require.NotNil(t, sel)
	assert.Equal(t, "0xa9059cbb", *sel)
}

func TestBigString(t *testing.T) {
	assert.Equal(t, "0", BigString(nil))

	v, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", BigString((*hexutil.Big)(v)))
}
