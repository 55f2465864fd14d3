package aps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"tga-backend/internal/automation"
)

type signedUpload struct {
	UploadKey string   `json:"uploadKey"`
	URLs      []string `json:"urls"`
}

type signedDownload struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type ossObject struct {
	BucketKey string `json:"bucketKey"`
	ObjectKey string `json:"objectKey"`
	ObjectID  string `json:"objectId"`
	Size      int64  `json:"size"`
}

func (c *Client) objectURL(name, suffix string) string {
	return fmt.Sprintf("%s/oss/v2/buckets/%s/objects/%s%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.BucketKey), url.PathEscape(name), suffix)
}

// EnsureBucket creates the transient working bucket. A 409 means it already
// exists and is treated as success.
func (c *Client) EnsureBucket(ctx context.Context) error {
	body := map[string]string{"bucketKey": c.cfg.BucketKey, "policyKey": "transient"}
	_, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/oss/v2/buckets", body, nil, http.StatusConflict)
	if err != nil {
		return fmt.Errorf("ensure bucket %s: %w", c.cfg.BucketKey, err)
	}
	return nil
}

// Upload streams r to OSS through a single-part signed S3 upload.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (automation.Object, error) {
	var signed signedUpload
	if _, err := c.doJSON(ctx, http.MethodGet, c.objectURL(name, "/signeds3upload"), nil, &signed); err != nil {
		return automation.Object{}, fmt.Errorf("request upload url: %w", err)
	}
	if signed.UploadKey == "" || len(signed.URLs) == 0 {
		return automation.Object{}, fmt.Errorf("request upload url: empty response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.URLs[0], r)
	if err != nil {
		return automation.Object{}, err
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return automation.Object{}, fmt.Errorf("upload %s: %w", name, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return automation.Object{}, &APIError{Method: http.MethodPut, URL: "signed upload url", Status: resp.StatusCode}
	}

	var obj ossObject
	complete := map[string]string{"uploadKey": signed.UploadKey}
	if _, err := c.doJSON(ctx, http.MethodPost, c.objectURL(name, "/signeds3upload"), complete, &obj); err != nil {
		return automation.Object{}, fmt.Errorf("complete upload: %w", err)
	}
	if obj.ObjectKey == "" {
		obj.BucketKey, obj.ObjectKey = c.cfg.BucketKey, name
	}
	return automation.Object{BucketKey: obj.BucketKey, ObjectKey: obj.ObjectKey, ObjectID: obj.ObjectID, Size: obj.Size}, nil
}

// Download opens the named object through a signed S3 download URL.
func (c *Client) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	signedURL, err := c.downloadURL(ctx, name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Method: http.MethodGet, URL: "signed download url", Status: resp.StatusCode}
	}
	return resp.Body, nil
}

func (c *Client) downloadURL(ctx context.Context, name string) (string, error) {
	var signed signedDownload
	if _, err := c.doJSON(ctx, http.MethodGet, c.objectURL(name, "/signeds3download"), nil, &signed); err != nil {
		return "", fmt.Errorf("request download url: %w", err)
	}
	if signed.URL == "" {
		return "", fmt.Errorf("request download url: object %s not ready (%s)", name, signed.Status)
	}
	return signed.URL, nil
}
