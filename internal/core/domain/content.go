package domain

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentKind is the modality of an uploaded file
type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindImage ContentKind = "image"
	ContentKindAudio ContentKind = "audio"
)

// IsValid reports whether k is one of the known kinds
func (k ContentKind) IsValid() bool {
	switch k {
	case ContentKindText, ContentKindImage, ContentKindAudio:
		return true
	}
	return false
}

// ContentStatus tracks the embedding lifecycle of a content item
type ContentStatus string

const (
	ContentStatusPending ContentStatus = "pending"
	ContentStatusReady   ContentStatus = "ready"
	ContentStatusFailed  ContentStatus = "failed"
)

// IsValid reports whether s is one of the known statuses
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusPending, ContentStatusReady, ContentStatusFailed:
		return true
	}
	return false
}

// Content is an uploaded file owned by a single user
type Content struct {
	ID               string        `json:"id"`
	OwnerID          string        `json:"owner_id"`
	LogicalPath      string        `json:"logical_path"`
	OriginalFilename string        `json:"original_filename"`
	Kind             ContentKind   `json:"kind"`
	Tag              bool          `json:"tag"`
	Status           ContentStatus `json:"status"`
	Size             int64         `json:"size"`
	Error            string        `json:"error,omitempty"` // Reason for the last failure
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewContent creates a pending content record. The logical path is derived
// from the owner and a fresh ID so uploads with the same filename never collide.
func NewContent(ownerID, filename string, kind ContentKind, size int64) *Content {
	now := time.Now()
	id := uuid.NewString()
	return &Content{
		ID:               id,
		OwnerID:          ownerID,
		LogicalPath:      BuildLogicalPath(ownerID, id, filename),
		OriginalFilename: filename,
		Kind:             kind,
		Tag:              true,
		Status:           ContentStatusPending,
		Size:             size,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsSearchable returns true once the embedding has been committed
func (c *Content) IsSearchable() bool {
	return c.Status == ContentStatusReady
}

// ContentSummary is the subset of a content row shown next to search results
type ContentSummary struct {
	ID               string      `json:"id"`
	OriginalFilename string      `json:"original_filename"`
	Kind             ContentKind `json:"kind"`
	Tag              bool        `json:"tag"`
}

// ContentFilter narrows a content listing
type ContentFilter struct {
	Status ContentStatus
	Tag    *bool
	Limit  int
	Offset int
}

// ExtensionPolicy decides which uploads are accepted and what kind they are
type ExtensionPolicy struct {
	allowed map[string]ContentKind
	order   []string
}

var extensionKinds = map[string]ContentKind{
	"txt":  ContentKindText,
	"md":   ContentKindText,
	"jpg":  ContentKindImage,
	"jpeg": ContentKindImage,
	"png":  ContentKindImage,
	"gif":  ContentKindImage,
	"webp": ContentKindImage,
	"mp3":  ContentKindAudio,
	"wav":  ContentKindAudio,
	"ogg":  ContentKindAudio,
	"flac": ContentKindAudio,
}

// DefaultAllowedExtensions is used when no allow-list is configured
var DefaultAllowedExtensions = []string{"txt", "jpg", "jpeg", "wav"}

// NewExtensionPolicy builds a policy from an allow-list. Extensions are
// case-insensitive and may carry a leading dot. Extensions without a known
// content kind are rejected.
func NewExtensionPolicy(extensions []string) (*ExtensionPolicy, error) {
	if len(extensions) == 0 {
		extensions = DefaultAllowedExtensions
	}
	p := &ExtensionPolicy{allowed: make(map[string]ContentKind, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		kind, ok := extensionKinds[ext]
		if !ok {
			return nil, fmt.Errorf("%w: no content kind for extension %q", ErrInvalidInput, ext)
		}
		if _, dup := p.allowed[ext]; dup {
			continue
		}
		p.allowed[ext] = kind
		p.order = append(p.order, ext)
	}
	if len(p.allowed) == 0 {
		return nil, fmt.Errorf("%w: empty extension allow-list", ErrInvalidInput)
	}
	return p, nil
}

// Classify returns the content kind for filename, or ErrUnsupportedExtension
func (p *ExtensionPolicy) Classify(filename string) (ContentKind, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedExtension, filename)
	}
	kind, ok := p.allowed[ext]
	if !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedExtension, ext)
	}
	return kind, nil
}

// Extensions returns the allowed extensions in configuration order
func (p *ExtensionPolicy) Extensions() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// BuildLogicalPath returns "<owner>/<id>_<safe filename>"
func BuildLogicalPath(ownerID, id, filename string) string {
	return ownerID + "/" + id + "_" + SanitizeFilename(filename)
}

// Thumbnail geometry for image content
const (
	ThumbnailWidth   = 320
	ThumbnailHeight  = 180
	ThumbnailQuality = 85 // JPEG quality
)

// ThumbnailPath returns "thumbnails/<logical path without extension>_thumb.jpg"
func ThumbnailPath(logicalPath string) string {
	return "thumbnails/" + strings.TrimSuffix(logicalPath, path.Ext(logicalPath)) + "_thumb.jpg"
}

// SanitizeFilename strips directory components and anything outside
// [A-Za-z0-9._-] from a user supplied filename.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)

	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}

// NormalizeLogicalPath converts a path to the backend-neutral form used for
// every blob key: forward slashes, no leading slash, no empty or dot segments.
func NormalizeLogicalPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: path %q escapes root", ErrInvalidInput, p)
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	return strings.Join(out, "/"), nil
}
