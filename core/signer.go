package core

import "time"

// SignedURL is a time limited URL granting access to a private asset.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// URLSigner is any service that can sign asset paths for delivery.
type URLSigner interface {
	Sign(path string) (SignedURL, error)
}
