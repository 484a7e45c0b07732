// Package archive stores segmentation runs in a blob store.
//
// Runs are encoded with a codec, compressed in blocks with LZ4 or zstd and
// addressed by a UUID:
//
//	arc := archive.New(blobstore.NewLocalStore("results"), archive.WithCompression(archive.CompressionLZ4))
//	id, err := arc.Save(ctx, &archive.Record{ChangePoints: res.ChangePoints, Samples: res.Samples})
//	rec, err := arc.Load(ctx, id)
//
// Writes and reads go through the IO limit of an optional resource.Controller.
package archive
