package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000f0")

func TestInstantiateResponseRoundTrip(t *testing.T) {
	t.Run("address only", func(t *testing.T) {
		res, err := ParseInstantiateResponse(EncodeInstantiateResponse(InstantiateResponse{ContractAddress: testContract}))
		require.NoError(t, err)
		assert.Equal(t, testContract, res.ContractAddress)
		assert.Empty(t, res.Data)
	})

	t.Run("with data", func(t *testing.T) {
		res, err := ParseInstantiateResponse(EncodeInstantiateResponse(InstantiateResponse{
			ContractAddress: testContract,
			Data:            []byte{0x01, 0x02},
		}))
		require.NoError(t, err)
		assert.Equal(t, testContract, res.ContractAddress)
		assert.Equal(t, []byte{0x01, 0x02}, res.Data)
	})
}

func TestParseInstantiateResponseSkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = append(b, EncodeInstantiateResponse(InstantiateResponse{ContractAddress: testContract})...)

	res, err := ParseInstantiateResponse(b)
	require.NoError(t, err)
	assert.Equal(t, testContract, res.ContractAddress)
}

func TestParseInstantiateResponseMalformed(t *testing.T) {
	var badAddr []byte
	badAddr = protowire.AppendTag(badAddr, 1, protowire.BytesType)
	badAddr = protowire.AppendString(badAddr, "not-an-address")

	var truncated []byte
	truncated = protowire.AppendTag(truncated, 1, protowire.BytesType)
	truncated = append(truncated, 0x20, 'a')

	tests := map[string][]byte{
		"empty":           nil,
		"garbage":         {0xff, 0xff, 0xff},
		"invalid address": badAddr,
		"truncated":       truncated,
		"missing address": protowire.AppendBytes(protowire.AppendTag(nil, 2, protowire.BytesType), []byte("x")),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInstantiateResponse(input)
			assert.ErrorIs(t, err, ErrMalformedInstantiateData)
		})
	}
}
