// Package fs abstracts the file operations used to write tree containers so
// tests can inject I/O failures.
//
// Production code uses [Default] ([LocalFS]). Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 128})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
package fs
