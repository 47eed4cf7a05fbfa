package driven

// Thumbnailer renders the JPEG preview served for image content
type Thumbnailer interface {
	// Thumbnail decodes an image and returns the encoded preview.
	// Bytes that are not a decodable image yield domain.ErrNotSupported.
	Thumbnail(data []byte) ([]byte, error)
}
