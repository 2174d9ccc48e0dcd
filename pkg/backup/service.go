package backup

import (
	"context"
	"path/filepath"

	errs "photobackup/pkg/errors"
	"photobackup/pkg/logger"
	"photobackup/pkg/netease"
	"photobackup/pkg/storage"
)

// AlbumSource lists an owner's albums and their photos
type AlbumSource interface {
	ResolveIndexURL(ctx context.Context, ownerID string) (string, error)
	ParseAlbums(ctx context.Context, indexURL string) []netease.AlbumDescriptor
	ParseItems(ctx context.Context, listingReference string) []netease.PhotoDescriptor
}

// Service runs complete backups
type Service struct {
	source     AlbumSource
	downloader *Downloader
	root       string
	logger     logger.Logger
}

// NewService creates a backup service writing below root
func NewService(source AlbumSource, dl *Downloader, root string, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Service{source: source, downloader: dl, root: root, logger: log}
}

// Run backs up every album of ownerID into root/ownerID. It fails when the
// album index cannot be resolved, when the owner directory cannot be
// created, or when ctx ends; every other problem is logged and recorded in
// the summary.
func (s *Service) Run(ctx context.Context, ownerID string) (*Summary, error) {
	summary := &Summary{OwnerID: ownerID}
	log := s.logger.WithField("owner", ownerID)

	indexURL, err := s.source.ResolveIndexURL(ctx, ownerID)
	if err != nil {
		return summary, err
	}

	ownerDir := storage.SanitizeSegment(ownerID)
	if ownerDir == "" {
		return summary, errs.New(errs.ErrorTypeIO, "owner id %q is not a valid directory name", ownerID)
	}
	summary.Root = filepath.Join(s.root, ownerDir)
	if err := storage.EnsureDir(summary.Root); err != nil {
		return summary, err
	}

	log.InfoWithFields("backing up albums", map[string]interface{}{
		"source":      indexURL,
		"destination": summary.Root,
	})

	albums := s.source.ParseAlbums(ctx, indexURL)
	if len(albums) == 0 {
		log.Info("no albums found")
		return summary, nil
	}

	empty := 0
	for _, album := range albums {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		items := s.source.ParseItems(ctx, album.ListingReference)
		outcome, err := s.downloader.DownloadAlbum(ctx, album, items, summary.Root)
		if outcome != nil {
			summary.Albums = append(summary.Albums, outcome)
			if len(items) == 0 {
				empty++
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			log.WithError(err).ErrorWithFields("album skipped", map[string]interface{}{
				"album": album.Name,
			})
			summary.Aborted = append(summary.Aborted, AlbumError{Album: album.Name, Err: err})
		}
	}

	fields := map[string]interface{}{
		"albums":    len(summary.Albums),
		"empty":     empty,
		"aborted":   len(summary.Aborted),
		"attempted": summary.Attempted(),
		"saved":     summary.Saved(),
		"failed":    summary.Failed(),
	}
	if summary.Failed() > 0 || len(summary.Aborted) > 0 {
		log.WarnWithFields("backup finished with failures", fields)
	} else {
		log.InfoWithFields("backup finished", fields)
	}
	return summary, nil
}
