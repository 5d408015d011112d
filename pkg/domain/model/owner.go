package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultOwner is used when a caller does not identify itself
const DefaultOwner OwnerID = "default"

// OwnerID identifies the user whose data is being accessed. Every store is
// partitioned by it.
type OwnerID string

// Key returns the sanitized form of the owner ID
func (o OwnerID) Key() string {
	return SanitizeKey(string(o))
}

// Validate rejects owners that sanitize to an empty key
func (o OwnerID) Validate() error {
	if o.Key() == "" {
		return goerr.Wrap(ErrInvalidInput, "owner is empty after sanitization", goerr.V(OwnerKey, o))
	}
	return nil
}

// StoreKind names one of the per-owner stores
type StoreKind string

const (
	StoreItems          StoreKind = "items"
	StoreEmbeddings     StoreKind = "embeddings"
	StoreCategories     StoreKind = "categories"
	StoreItemCategories StoreKind = "item_categories"
)

// StorageKey returns the backend key of an owner's store, e.g. "items_alice"
func StorageKey(kind StoreKind, owner OwnerID) string {
	return SanitizeKey(string(kind) + "_" + string(owner))
}

// MediaKey returns the blob key of an uploaded media file
func MediaKey(owner OwnerID, id ItemID) string {
	return SanitizeKey("media_" + string(owner) + "_" + string(id))
}

// SanitizeKey strips every character outside [A-Za-z0-9._-]
func SanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return -1
	}, s)
}
