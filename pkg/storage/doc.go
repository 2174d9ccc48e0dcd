// Package storage lays out the backup tree on disk.
//
// EnsureDir creates album and owner directories idempotently, SanitizeSegment
// turns album names and photo descriptions into safe single path segments,
// and Manager writes photo bodies atomically: data is streamed into a
// ".part" file next to the destination and renamed into place only after
// the copy succeeded, so a failed download never leaves a file behind.
//
// Usage:
//
//	dir, err := storage.AlbumPath(root, album.Name)
//	if err := storage.EnsureDir(dir); err != nil {
//		return err
//	}
//	m := storage.NewManager()
//	n, err := m.Save(body, filepath.Join(dir, "photo.jpg"))
package storage
