// Package upload exchanges file metadata for presigned URLs and PUTs file
// bytes to them with bounded concurrency (§4.D).
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// FileSpec describes a file pending upload.
type FileSpec struct {
	Filename  string
	MediaType string
	Size      int64
	Bytes     []byte
}

// UploadTarget is a single presigned-URL pair returned by the host for one
// FileSpec, matched positionally.
type UploadTarget struct {
	ID          string
	UploadURL   string
	DownloadURL string
}

// FileReference is the resolved, citable handle to an uploaded file.
type FileReference struct {
	ID        string
	MediaType string
	URL       string
	Filename  string
	Size      int64
}

// Options configures a call to UploadFiles.
type Options struct {
	// RequestUploadURLs exchanges file metadata for presigned upload/download
	// URL pairs, one per input file, in the same order. Required.
	RequestUploadURLs func(ctx context.Context, files []FileSpec) ([]UploadTarget, error)

	// OnProgress is optional. It is called once per file, with percent 100,
	// when that file's PUT succeeds; intermediate progress is not reported.
	OnProgress func(index int, percent int)

	// Concurrency bounds the number of simultaneous PUTs. Defaults to 4.
	Concurrency int

	// HTTPClient overrides the client used for PUT requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Error reports which file (by index) failed to upload.
type Error struct {
	Index int
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload: file %d: %v", e.Index, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// UploadFiles requests presigned URLs for files, then PUTs each file's bytes
// with concurrency bounded by a buffered-channel semaphore, returning one
// FileReference per input file in the same order (§4.D).
func UploadFiles(ctx context.Context, files []FileSpec, opts Options) ([]FileReference, error) {
	if opts.RequestUploadURLs == nil {
		return nil, fmt.Errorf("upload: RequestUploadURLs is required")
	}
	if len(files) == 0 {
		return nil, nil
	}

	targets, err := opts.RequestUploadURLs(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("upload: requesting upload URLs: %w", err)
	}
	if len(targets) != len(files) {
		return nil, fmt.Errorf("upload: host returned %d upload targets for %d files", len(targets), len(files))
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)

	refs := make([]FileReference, len(files))
	errCh := make(chan error, len(files))
	for i := range files {
		i := i
		go func() {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errCh <- &Error{Index: i, Cause: ctx.Err()}
				return
			}
			if err := putFile(ctx, client, files[i], targets[i]); err != nil {
				errCh <- &Error{Index: i, Cause: err}
				return
			}
			if opts.OnProgress != nil {
				opts.OnProgress(i, 100)
			}
			refs[i] = FileReference{
				ID:        targets[i].ID,
				MediaType: files[i].MediaType,
				URL:       targets[i].DownloadURL,
				Filename:  files[i].Filename,
				Size:      files[i].Size,
			}
			errCh <- nil
		}()
	}

	for range files {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func putFile(ctx context.Context, client *http.Client, f FileSpec, target UploadTarget) error {
	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, bytes.NewReader(f.Bytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mediaType)
	req.ContentLength = int64(len(f.Bytes))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload PUT returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
