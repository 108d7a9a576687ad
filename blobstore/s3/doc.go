// Package s3 stores tree containers in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("trees/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	err = kdgo.Save(ctx, store, "stars.kdt", tree)
//
// Reads use ranged GETs, writes stream through the multipart upload manager
// and small blobs are sent with a CRC32C checksum.
//
// DDBCommitStore adds a DynamoDB-backed CURRENT pointer so several writers
// can publish new tree containers without overwriting each other.
package s3
