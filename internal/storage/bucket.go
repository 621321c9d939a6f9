// Package storage wraps the hosted object-storage bucket used for chat attachments.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
)

// Client uploads chat attachments and resolves their public URLs.
type Client struct {
	// Storage API endpoint, e.g. https://xyz.supabase.co/storage/v1
	Endpoint string

	// Anonymous (publishable) API key
	AnonKey string

	// Bucket name
	Bucket string

	public *storage_go.Client
}

func NewClient(projectURL, anonKey, bucket string) *Client {
	endpoint := strings.TrimRight(projectURL, "/") + "/storage/v1"
	return &Client{
		Endpoint: endpoint,
		AnonKey:  anonKey,
		Bucket:   bucket,
		public:   storage_go.NewClient(endpoint, anonKey, map[string]string{"apikey": anonKey}),
	}
}

// ObjectPath returns a user-scoped object name that keeps the original extension.
func ObjectPath(userID, fileName string) string {
	name := uuid.NewString()
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" {
		name += "." + strings.ToLower(ext)
	}
	return userID + "/" + name
}

// Upload stores body under objectPath. accessToken is the caller's session token so
// bucket policies apply to the user; when empty the anon key is used.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, body io.Reader, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client := c.public
	if accessToken != "" {
		client = storage_go.NewClient(c.Endpoint, accessToken, map[string]string{"apikey": c.AnonKey})
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	resp, err := client.UploadFile(c.Bucket, objectPath, body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectPath, err)
	}
	// Rejected uploads come back as an error document without a Key.
	if resp.Key == "" {
		return fmt.Errorf("upload %s was not accepted by the bucket", objectPath)
	}
	return nil
}

// PublicURL resolves the object's public link; the bucket must be public for it to load.
func (c *Client) PublicURL(objectPath string) string {
	return c.public.GetPublicUrl(c.Bucket, objectPath).SignedURL
}
