package models

// ImageItem is a single contestant in a tournament. Identity is the URL:
// it must be unique within one tournament, both for bracket bookkeeping and
// for stable keying on the client.
type ImageItem struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}
