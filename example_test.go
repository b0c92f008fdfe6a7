package dealscache_test

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/dealscache"
	"github.com/unkn0wn-root/dealscache/codec"
)

// A Store can hold proto messages by pairing it with the Protobuf codec.
func ExampleNewStore_protobuf() {
	ctx := context.Background()
	store, err := dealscache.NewStore(dealscache.StoreOptions[*wrapperspb.StringValue]{
		Namespace:     "titles",
		Codec:         codec.NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }),
		SweepInterval: -1,
	})
	if err != nil {
		panic(err)
	}
	defer store.Close(ctx)

	if err := store.Put(ctx, "sku-42", wrapperspb.String("Galaxy S24 128GB")); err != nil {
		panic(err)
	}
	rec, ok := store.Get(ctx, "sku-42")
	fmt.Println(ok, rec.Value.GetValue())
	// Output: true Galaxy S24 128GB
}
