// Package cloudinary is a file adapter storing images on Cloudinary.
package cloudinary

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
)

var logger = logging.Logger("cloudinary")

// Config is used to configure a new Adapter.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// Folder is prepended to the public id of every upload.
	Folder string

	// APIBase overrides the upload API endpoint, https://api.cloudinary.com
	// by default.
	APIBase string
}

// Adapter implements cms.FileAdapter with the Cloudinary SDK.
type Adapter struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func New(c *Config) (*Adapter, error) {
	if c.CloudName == "" || c.APIKey == "" || c.APISecret == "" {
		return nil, &cms.ConfigError{Message: "cloudinary adapter needs a cloud name, an api key and an api secret"}
	}
	cfg, err := config.NewFromParams(c.CloudName, c.APIKey, c.APISecret)
	if err != nil {
		return nil, &cms.ConfigError{Message: fmt.Sprintf("invalid cloudinary config: %v", err)}
	}
	if c.APIBase != "" {
		cfg.API.UploadPrefix = strings.TrimRight(c.APIBase, "/")
	}
	cfg.URL.Secure = true

	cld, err := cloudinary.NewFromConfiguration(*cfg)
	if err != nil {
		return nil, &cms.ConfigError{Message: fmt.Sprintf("invalid cloudinary config: %v", err)}
	}
	return &Adapter{cld: cld, folder: strings.Trim(c.Folder, "/")}, nil
}

// remoteSource reports whether s is something Cloudinary fetches itself.
// Anything else would be read off the local disk by the SDK.
func remoteSource(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp", "s3", "gs", "data":
		return true
	}
	return false
}

// Save uploads the file and returns its stored value. What Cloudinary
// reported about the upload is kept under "_meta".
func (a *Adapter) Save(ctx context.Context, upload *cms.Upload) (cms.FileValue, error) {
	var file interface{}
	switch {
	case upload == nil:
		return nil, fmt.Errorf("nothing to upload")
	case upload.Body != nil:
		file = upload.Body
	case upload.Source == "":
		return nil, fmt.Errorf("nothing to upload")
	case !remoteSource(upload.Source):
		return nil, fmt.Errorf("unsupported upload source")
	default:
		file = upload.Source
	}

	id := uuid.New().String()
	res, err := a.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID: id,
		Folder:   a.folder,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}
	logger.Debugf("uploaded %s as %s", upload.Filename, res.PublicID)

	value := cms.FileValue{
		"id":               id,
		"filename":         upload.Filename,
		"originalFilename": upload.Filename,
		"_meta": map[string]interface{}{
			"public_id":     res.PublicID,
			"version":       res.Version,
			"format":        res.Format,
			"resource_type": res.ResourceType,
			"width":         res.Width,
			"height":        res.Height,
			"bytes":         res.Bytes,
			"url":           res.URL,
			"secure_url":    res.SecureURL,
		},
	}
	if upload.Mimetype != "" {
		value["mimetype"] = upload.Mimetype
	}
	if upload.Encoding != "" {
		value["encoding"] = upload.Encoding
	}
	return value, nil
}

// Delete destroys the image. Images Cloudinary does not know are reported
// as cms.ErrNotFound.
func (a *Adapter) Delete(ctx context.Context, file cms.FileValue) error {
	publicID, _ := file.Meta()["public_id"].(string)
	if publicID == "" {
		return fmt.Errorf("file %s has no public id: %w", file.ID(), cms.ErrNotFound)
	}
	res, err := a.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("error calling cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroying %s: %s", publicID, res.Error.Message)
	}
	switch res.Result {
	case "ok":
		return nil
	case "not found":
		return fmt.Errorf("destroying %s: %w", publicID, cms.ErrNotFound)
	default:
		return fmt.Errorf("destroying %s: unexpected result %q", publicID, res.Result)
	}
}

// PublicURL returns the secure URL Cloudinary reported on upload.
func (a *Adapter) PublicURL(file cms.FileValue) string {
	url, _ := file.Meta()["secure_url"].(string)
	return url
}

// PublicURLTransformed builds a delivery URL applying transformation. Only
// asking for a prettyName is the same as asking for nothing.
func (a *Adapter) PublicURLTransformed(file cms.FileValue, transformation map[string]string) string {
	meta := file.Meta()
	if meta == nil {
		return ""
	}
	prettyName := transformation["prettyName"]
	options := make(map[string]string, len(transformation))
	for k, v := range transformation {
		if k != "prettyName" {
			options[k] = v
		}
	}
	if len(options) == 0 {
		return a.PublicURL(file)
	}

	publicID, _ := meta["public_id"].(string)
	img, err := a.cld.Image(publicID)
	if err != nil {
		logger.Errorf("error building url for %s: %v", publicID, err)
		return ""
	}
	img.Transformation = TransformationString(options)
	img.Version = version(meta["version"])
	img.Suffix = prettyName

	raw, err := img.String()
	if err != nil {
		logger.Errorf("error building url for %s: %v", publicID, err)
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		logger.Errorf("error parsing url %s: %v", raw, err)
		return ""
	}
	// drop the SDK's analytics marker
	q := u.Query()
	q.Del("_a")
	u.RawQuery = q.Encode()

	format := options["format"]
	if format == "" {
		format, _ = meta["format"].(string)
	}
	if format != "" {
		u.Path += "." + format
		u.RawPath = ""
	}
	return u.String()
}

// version reads the upload version however the store decoded it.
func version(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(strings.TrimPrefix(n, "v"))
		return i
	}
	return 0
}
