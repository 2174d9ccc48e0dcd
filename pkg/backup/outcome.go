package backup

import (
	"sync"

	"photobackup/internal/downloader"
)

// Failure describes one photo that could not be stored
type Failure struct {
	URL    string
	Path   string
	Reason string
}

// DownloadOutcome accumulates the per-photo results of one album
type DownloadOutcome struct {
	Album string
	Path  string

	Attempted int
	Failed    int
	Skipped   int
	Saved     int
	Bytes     int64
	Failures  []Failure

	mu sync.Mutex
}

func (o *DownloadOutcome) record(r downloader.DownloadResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r.Cancelled {
		return
	}
	o.Attempted++
	switch {
	case r.Skipped:
		o.Skipped++
	case r.Success:
		o.Saved++
		o.Bytes += r.Size
	default:
		o.Failed++
		reason := "unknown error"
		if r.Error != nil {
			reason = r.Error.Error()
		}
		o.Failures = append(o.Failures, Failure{URL: r.Job.URL, Path: r.Job.Path, Reason: reason})
	}
}

// AlbumError records an album that was abandoned
type AlbumError struct {
	Album string
	Err   error
}

// Summary is the result of one backup run
type Summary struct {
	OwnerID string
	Root    string
	Albums  []*DownloadOutcome
	Aborted []AlbumError
}

// Attempted returns the number of photos attempted across all albums
func (s *Summary) Attempted() int {
	n := 0
	for _, a := range s.Albums {
		n += a.Attempted
	}
	return n
}

// Failed returns the number of photos that failed across all albums
func (s *Summary) Failed() int {
	n := 0
	for _, a := range s.Albums {
		n += a.Failed
	}
	return n
}

// Saved returns the number of photos written across all albums
func (s *Summary) Saved() int {
	n := 0
	for _, a := range s.Albums {
		n += a.Saved
	}
	return n
}
