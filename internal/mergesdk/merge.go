package mergesdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
)

const uploadCallbackInterval = 250 * time.Millisecond

// Merge uploads params.Files to POST /merge and returns the merged file.
//
// A single attempt is made. Failures come back as *TransportError,
// *ServerError or *MetadataError.
func (c *Client) Merge(ctx context.Context, params *MergeParams) (*MergeResult, error) {
	for _, path := range params.Files {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
	}

	requestID := uuid.NewString()

	fields := make(map[string]string, len(params.Fields)+1)
	for k, v := range params.Fields {
		fields[k] = v
	}
	fields[fieldDownloadType] = params.DownloadType.String()

	r := c.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetHeader(HeaderRequestID, requestID).
		SetFormData(fields)

	for _, path := range params.Files {
		r.SetFile(fieldFiles, path)
	}

	if params.OnUpload != nil {
		r.SetUploadCallbackWithInterval(func(info req.UploadInfo) {
			params.OnUpload(info.FileName, info.UploadedSize, info.FileSize)
		}, uploadCallbackInterval)
	}

	slog.Debug("merge request", "requestId", requestID, "files", len(params.Files), "downloadType", params.DownloadType)

	resp, err := r.Post(pathMerge)
	if err != nil {
		return nil, &TransportError{Op: "merge request", Err: err}
	}

	if !resp.IsSuccessState() {
		return nil, newServerError(resp.GetStatusCode(), resp.String())
	}

	meta, err := parseMetadata(resp.GetHeader(HeaderMetadata))
	if err != nil {
		return nil, err
	}

	return &MergeResult{
		RequestID:   requestID,
		ContentType: resp.GetContentType(),
		Body:        resp.Bytes(),
		Metadata:    meta,
	}, nil
}

// parseMetadata decodes the X-Metadata header. An absent or null header is not an error.
func parseMetadata(raw string) (*Metadata, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var meta Metadata
	if err := jsonUnmarshal([]byte(raw), &meta); err != nil {
		return nil, &MetadataError{Raw: raw, Err: err}
	}
	return &meta, nil
}

// FileNames returns the base names of the submitted files, as the server sees them.
func (p *MergeParams) FileNames() []string {
	names := make([]string, len(p.Files))
	for i, path := range p.Files {
		names[i] = filepath.Base(path)
	}
	return names
}
