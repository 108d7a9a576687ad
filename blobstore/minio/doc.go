// Package minio stores tree containers in MinIO or any S3-compatible service
// (Ceph, Garage, SeaweedFS) using the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "trees", "catalog/")
//	err = kdgo.Save(ctx, store, "stars.kdt", tree)
package minio
