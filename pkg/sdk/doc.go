// Package propindex embeds the real-estate project index in a Go program,
// without the HTTP service in front of it.
//
// The client composes, embeds and stores canonical project records, and answers
// natural-language queries with the same deterministic ranking the service uses.
//
//	client, _ := propindex.New(ctx,
//	    propindex.WithValkey("localhost:6379", ""),
//	    propindex.WithEmbedder(myEmbedder),
//	    propindex.WithVectorDimensions(384),
//	)
//	defer client.Close()
//
//	_, _ = client.Index(ctx, rawProjectJSON)
//	resp, _ := client.Search(ctx, propindex.Query{
//	    Text:      "apartamento con piscina",
//	    Location:  "Bogotá",
//	    Amenities: []string{"piscina"},
//	})
//
// WithMemory runs the index in process; useful for tests and small datasets.
package propindex
