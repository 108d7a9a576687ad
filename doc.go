// Package kdgo provides compact, disk-serializable k-d trees for exact
// nearest-neighbour and radius search over fixed-dimension point sets.
//
// # Quick Start
//
//	ctx := context.Background()
//	tree, _ := kdgo.Build(points, n, 3)
//	nb, _ := tree.Nearest([]float64{0.1, 0.2, 0.3})
//
// Trees can store coordinates as float64, float32 or quantized uint32/uint16
// and bound their nodes with bounding boxes, split planes, or both:
//
//	tree, _ := kdgo.Build(points, n, 3, kdgo.WithTreeOptions(
//	    kdtree.WithInternalKind(coord.KindUint32),
//	    kdtree.WithBoundingBoxes(false),
//	    kdtree.WithSplitPlanes(kdtree.SplitDimPacked),
//	))
//
// # Persistence
//
// Trees are saved as chunk containers in any blob store: a local directory,
// memory, S3 or MinIO.
//
//	store := blobstore.NewLocalStore("./trees")
//	_ = tree.Save(ctx, store, "stars.kdc")
//	tree, _ = kdgo.Load(ctx, store, "stars.kdc")
//
// Publish and LoadCurrent maintain a CURRENT pointer to the latest container;
// with s3.DDBCommitStore the pointer is updated atomically in DynamoDB.
//
// # Batched Queries
//
// BatchNearest runs independent queries in parallel. AllNearest and
// RangeJoin use a dual-tree walk to answer a query for every point of
// another tree at once.
package kdgo
