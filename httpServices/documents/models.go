package documents

// Document is a blob handed to the document store
type Document struct {
	Name        string            `json:"name"`
	ContentType string            `json:"content_type"`
	Content     []byte            `json:"-"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Stored is the reference the document store returns
type Stored struct {
	URL  string `json:"url"`
	Hash string `json:"sha256"`
}

type persistRequest struct {
	Name          string            `json:"name"`
	ContentType   string            `json:"content_type"`
	ContentBase64 string            `json:"content_base64"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
