// Package minio stores interval bases in MinIO or any other S3-compatible
// object store reachable through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "snapshots", "bases/")
//	w, err := persistence.NewWriter(store, "run-1", rank, persistence.WithRanks(size))
//
// Blob names are joined to the root prefix with "/". Reads are ranged GETs,
// so a Reader fetching one rank's blob never downloads the others. Basis
// blobs are written whole with PutObject; the client switches to multipart
// uploads on its own for large bases.
package minio
