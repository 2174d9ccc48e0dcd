// Package backup mirrors an owner's albums to disk.
//
// Service.Run drives a whole backup: it resolves the owner's album index,
// creates the owner directory and hands every album to
// Downloader.DownloadAlbum, one album at a time. Failures are contained at
// the smallest scope that makes sense: a broken photo is counted and
// skipped, an album whose directory cannot be created is abandoned, and only
// a missing album index or an unusable output root ends the run.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"photobackup/internal/downloader"
	"photobackup/pkg/logger"
	"photobackup/pkg/netease"
	"photobackup/pkg/storage"
)

// Options tune the album downloader
type Options struct {
	// Concurrency is the number of photos fetched at once
	Concurrency int
	// SkipExisting leaves non-empty destination files untouched
	SkipExisting bool
	Progress     Progress
}

// Downloader stores the photos of one album at a time
type Downloader struct {
	fetcher downloader.PhotoFetcher
	storage downloader.PhotoStorage
	opts    Options
	logger  logger.Logger
}

// NewDownloader creates an album downloader
func NewDownloader(fetcher downloader.PhotoFetcher, store downloader.PhotoStorage, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Progress == nil {
		opts.Progress = NopProgress{}
	}
	return &Downloader{fetcher: fetcher, storage: store, opts: opts, logger: log}
}

// DownloadAlbum creates the album directory under albumRoot and stores every
// item in it. A photo that fails is recorded in the outcome and does not stop
// the album. The returned error is an io error when the directory cannot be
// created, or the context error when ctx ended; in the latter case the
// partial outcome is returned as well.
func (d *Downloader) DownloadAlbum(ctx context.Context, album netease.AlbumDescriptor, items []netease.PhotoDescriptor, albumRoot string) (*DownloadOutcome, error) {
	albumPath, err := storage.AlbumPath(albumRoot, album.Name)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureDir(albumPath); err != nil {
		return nil, err
	}

	outcome := &DownloadOutcome{Album: album.Name, Path: albumPath}
	log := d.logger.WithFields(map[string]interface{}{
		"album": album.Name,
		"path":  albumPath,
	})

	d.opts.Progress.Start(album.Name, len(items))
	defer d.opts.Progress.Finish()

	if len(items) == 0 {
		log.Warn("album is empty or encrypted")
		return outcome, nil
	}

	pool := downloader.NewWorkerPool(ctx, d.opts.Concurrency, d.fetcher, d.storage, d.opts.SkipExisting, d.logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			outcome.record(r)
			if r.Cancelled {
				continue
			}
			if !r.Success {
				log.WithError(r.Error).WarnWithFields("photo download failed", map[string]interface{}{
					"url":  r.Job.URL,
					"file": filepath.Base(r.Job.Path),
				})
			}
			d.opts.Progress.Advance()
		}
	}()

	pool.Start()
	names := make(map[string]bool, len(items))
	for i, item := range items {
		job := downloader.DownloadJob{
			Index: i,
			URL:   item.Original,
			Path:  filepath.Join(albumPath, uniqueName(names, photoName(item, i))),
			Album: album.Name,
			Err:   item.Err,
		}
		if err := pool.Submit(job); err != nil {
			break
		}
	}
	pool.Stop()
	<-done

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	if outcome.Failed > 0 {
		log.WarnWithFields("album finished with failures", map[string]interface{}{
			"attempted": outcome.Attempted,
			"failed":    outcome.Failed,
		})
	} else {
		log.InfoWithFields("album finished", map[string]interface{}{
			"attempted": outcome.Attempted,
			"skipped":   outcome.Skipped,
		})
	}
	return outcome, nil
}

// photoName is the item's own file name, or a positional one when the item
// carries neither a description nor a usable URL.
func photoName(item netease.PhotoDescriptor, index int) string {
	if name := item.Filename(); name != "" {
		return name
	}
	return fmt.Sprintf("photo_%d", index+1)
}

// uniqueName returns name, or name with the lowest free " (n)" suffix when
// it is already taken in the album. Names compare case-insensitively so that
// concurrent workers never share a destination on any filesystem.
func uniqueName(taken map[string]bool, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; taken[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}
