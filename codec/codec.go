// Package codec converts cached values to and from the bytes a Provider stores.
//
// DealsCache picks Msgpack, JSON or CBOR by name through ByName. Protobuf is
// for Store[V] users whose values are proto messages:
//
//	dealscache.NewStore(dealscache.StoreOptions[*pb.Offer]{
//		Codec: codec.NewProtobuf(func() *pb.Offer { return &pb.Offer{} }),
//	})
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Default returns the codec used when Options leave Codec nil.
func Default[V any]() Codec[V] { return Msgpack[V]{} }

// Names accepted by ByName.
const (
	NameMsgpack = "msgpack"
	NameJSON    = "json"
	NameCBOR    = "cbor"
)

// ByName returns the codec registered under name; "" selects the default.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", NameMsgpack:
		return Msgpack[V]{}, nil
	case NameJSON:
		return JSON[V]{}, nil
	case NameCBOR:
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
