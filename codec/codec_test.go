package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type deal struct {
	ID    string  `json:"id" msgpack:"id" cbor:"id"`
	Title string  `json:"title" msgpack:"title" cbor:"title"`
	Price float64 `json:"price" msgpack:"price" cbor:"price"`
	Tags  []string
}

func sample() deal {
	return deal{ID: "d1", Title: "Galaxy S24", Price: 799.5, Tags: []string{"phone", "samsung"}}
}

func TestStructCodecs(t *testing.T) {
	codecs := map[string]Codec[deal]{
		"msgpack":  Msgpack[deal]{},
		"json":     JSON[deal]{},
		"cbor":     MustCBOR[deal](false),
		"cbor-det": MustCBOR[deal](true),
		"default":  Default[deal](),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(sample())
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			require.Equal(t, sample(), got)
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := JSON[deal]{}.Decode([]byte("{"))
	require.Error(t, err)
	_, err = Msgpack[deal]{}.Decode([]byte{0xc1})
	require.Error(t, err)
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, Max: 4}

	b, err := c.Encode("abcd")
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), b)

	_, err = c.Encode("abcde")
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = c.Decode([]byte("abcde"))
	require.ErrorIs(t, err, ErrTooLarge)

	unlimited := Limit[string]{Inner: String{}}
	s, err := unlimited.Decode([]byte("abcdefgh"))
	require.NoError(t, err)
	require.Equal(t, "abcdefgh", s)
}

func TestBytesDecodeCopies(t *testing.T) {
	in := []byte("abc")
	out, err := Bytes{}.Decode(in)
	require.NoError(t, err)
	in[0] = 'X'
	require.Equal(t, []byte("abc"), out)
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("airpods"))
	require.NoError(t, err)
	got, err := c.Decode(b)
	require.NoError(t, err)
	require.True(t, proto.Equal(wrapperspb.String("airpods"), got))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", NameMsgpack, NameJSON, NameCBOR} {
		c, err := ByName[map[string]int](name)
		require.NoError(t, err, name)
		b, err := c.Encode(map[string]int{"a": 1})
		require.NoError(t, err)
		v, err := c.Decode(b)
		require.NoError(t, err)
		require.Equal(t, 1, v["a"])
	}
	_, err := ByName[int]("gob")
	require.Error(t, err)
}
