// Package uploads signs direct browser uploads of project deliverables to Cloudinary.
package uploads

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
)

// ErrNotConfigured is returned when Cloudinary credentials are missing
var ErrNotConfigured = errors.New("cloudinary is not configured")

// SignedUpload is what the browser posts to Cloudinary alongside the file
type SignedUpload struct {
	CloudName string `json:"cloudName"`
	APIKey    string `json:"apiKey"`
	Timestamp int64  `json:"timestamp"`
	Folder    string `json:"folder"`
	Signature string `json:"signature"`
	UploadURL string `json:"uploadUrl"`
}

// Signer produces upload signatures without exposing the API secret
type Signer struct {
	CloudName string
	APIKey    string
	APISecret string
	Now       func() time.Time
}

// NewSigner returns a Signer using the wall clock
func NewSigner(cloudName, apiKey, apiSecret string) *Signer {
	return &Signer{CloudName: cloudName, APIKey: apiKey, APISecret: apiSecret, Now: time.Now}
}

// Sign returns a signature valid for uploads into folder
func (s *Signer) Sign(folder string) (*SignedUpload, error) {
	if s.CloudName == "" || s.APIKey == "" || s.APISecret == "" {
		return nil, ErrNotConfigured
	}
	ts := s.Now().Unix()
	params := url.Values{}
	params.Set("folder", folder)
	params.Set("timestamp", strconv.FormatInt(ts, 10))

	sig, err := api.SignParameters(params, s.APISecret)
	if err != nil {
		return nil, fmt.Errorf("sign upload: %w", err)
	}
	return &SignedUpload{
		CloudName: s.CloudName,
		APIKey:    s.APIKey,
		Timestamp: ts,
		Folder:    folder,
		Signature: sig,
		UploadURL: fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", s.CloudName),
	}, nil
}

// DeliverableFolder is where a developer's files for a project are stored
func DeliverableFolder(projectID string) string {
	return "webnest/deliverables/" + projectID
}
