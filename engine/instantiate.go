package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedInstantiateData is returned when instantiate reply data cannot be parsed.
var ErrMalformedInstantiateData = errors.New("malformed instantiate response data")

const (
	instantiateAddressField protowire.Number = 1
	instantiateDataField    protowire.Number = 2
)

// InstantiateResponse is the payload the host places in a successful instantiate reply.
type InstantiateResponse struct {
	ContractAddress common.Address
	Data            []byte
}

// EncodeInstantiateResponse encodes the response in protobuf wire format
// (field 1: address string, field 2: data bytes).
func EncodeInstantiateResponse(res InstantiateResponse) []byte {
	var b []byte
	b = protowire.AppendTag(b, instantiateAddressField, protowire.BytesType)
	b = protowire.AppendString(b, res.ContractAddress.Hex())
	if len(res.Data) > 0 {
		b = protowire.AppendTag(b, instantiateDataField, protowire.BytesType)
		b = protowire.AppendBytes(b, res.Data)
	}
	return b
}

// ParseInstantiateResponse decodes data produced by EncodeInstantiateResponse. Unknown
// fields are skipped; a missing or invalid address is an error.
func ParseInstantiateResponse(b []byte) (InstantiateResponse, error) {
	var (
		res     InstantiateResponse
		address string
	)
	if len(b) == 0 {
		return res, fmt.Errorf("%w: empty", ErrMalformedInstantiateData)
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return res, fmt.Errorf("%w: %v", ErrMalformedInstantiateData, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == instantiateAddressField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return res, fmt.Errorf("%w: %v", ErrMalformedInstantiateData, protowire.ParseError(n))
			}
			address = v
			b = b[n:]
		case num == instantiateDataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return res, fmt.Errorf("%w: %v", ErrMalformedInstantiateData, protowire.ParseError(n))
			}
			res.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return res, fmt.Errorf("%w: %v", ErrMalformedInstantiateData, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !common.IsHexAddress(address) {
		return res, fmt.Errorf("%w: contract address %q", ErrMalformedInstantiateData, address)
	}
	res.ContractAddress = common.HexToAddress(address)
	return res, nil
}
