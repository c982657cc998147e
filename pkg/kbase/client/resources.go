package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/tagreg"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func resourcePath(id string, suffix ...string) string {
	p := "/api/resources/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// ListResources fetches the whole catalog, offline resources included.
func (c *Client) ListResources(ctx context.Context) ([]catalog.Resource, error) {
	var out []catalog.Resource
	if err := c.do(ctx, http.MethodGet, "/api/resources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResource fetches one resource.
func (c *Client) GetResource(ctx context.Context, id string) (catalog.Resource, error) {
	var out catalog.Resource
	err := c.do(ctx, http.MethodGet, resourcePath(id), nil, &out)
	return out, err
}

// CreateResource stores r. The server assigns the id, dateAdded and counters.
func (c *Client) CreateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	var out catalog.Resource
	err := c.do(ctx, http.MethodPost, "/api/resources", r, &out)
	return out, err
}

// UpdateResource replaces r's editable fields.
func (c *Client) UpdateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	var out catalog.Resource
	err := c.do(ctx, http.MethodPut, resourcePath(r.ID), r, &out)
	return out, err
}

// DeleteResource removes a resource.
func (c *Client) DeleteResource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, resourcePath(id), nil, nil)
}

// SetRelated replaces the related ids of a resource.
func (c *Client) SetRelated(ctx context.Context, id string, related []string) error {
	if related == nil {
		related = []string{}
	}
	body := struct {
		RelatedIDs []string `json:"relatedIds"`
	}{related}
	return c.do(ctx, http.MethodPut, resourcePath(id, "related"), body, nil)
}

// BatchUpdate replaces several resources in one transaction.
func (c *Client) BatchUpdate(ctx context.Context, resources []catalog.Resource) ([]catalog.Resource, error) {
	body := struct {
		Resources []catalog.Resource `json:"resources"`
	}{resources}
	var out []catalog.Resource
	if err := c.do(ctx, http.MethodPut, "/api/resources/batch", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordView increments the view counter.
func (c *Client) RecordView(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, resourcePath(id, "view"), nil, nil)
}

// RecordDownload increments the download counter.
func (c *Client) RecordDownload(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, resourcePath(id, "download"), nil, nil)
}

// Upload streams content as the multipart field "file". size is advisory.
func (c *Client) Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (catalog.Upload, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/uploads", pr)
	if err != nil {
		pr.Close()
		return catalog.Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out catalog.Upload
	err = c.send(req, &out)
	pr.Close()
	return out, err
}

// Tags lists the tag registry.
func (c *Client) Tags(ctx context.Context) ([]tagreg.Entry, error) {
	var out []tagreg.Entry
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type tagChange struct {
	Updated []string `json:"updated"`
}

// RenameTag renames a tag on every resource and returns the ids it changed.
func (c *Client) RenameTag(ctx context.Context, oldName, newName string) ([]string, error) {
	body := struct {
		Name string `json:"name"`
	}{newName}
	var out tagChange
	err := c.do(ctx, http.MethodPut, "/api/tags/"+url.PathEscape(oldName), body, &out)
	return out.Updated, err
}

// DeleteTag removes a tag from every resource and returns the ids it changed.
func (c *Client) DeleteTag(ctx context.Context, name string) ([]string, error) {
	var out tagChange
	err := c.do(ctx, http.MethodDelete, "/api/tags/"+url.PathEscape(name), nil, &out)
	return out.Updated, err
}
