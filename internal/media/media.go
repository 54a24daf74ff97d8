package models

import (
	"fmt"
	"strings"
)

// OwnerKind tags which external aggregate an asset hangs off.
type OwnerKind string

const (
	OwnerProperty OwnerKind = "PROPERTY"
	OwnerAccount  OwnerKind = "ACCOUNT"
)

// Segment is the path/URL token for the kind.
func (k OwnerKind) Segment() string {
	switch k {
	case OwnerProperty:
		return "properties"
	case OwnerAccount:
		return "accounts"
	}
	return ""
}

func (k OwnerKind) Valid() bool { return k.Segment() != "" }

// ParseOwnerKind maps a URL segment ("properties", "accounts") to its kind.
func ParseOwnerKind(segment string) (OwnerKind, error) {
	switch segment {
	case "properties":
		return OwnerProperty, nil
	case "accounts":
		return OwnerAccount, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOwnerKind, segment)
}

// Owner is the tagged reference to a listing or account.
type Owner struct {
	Kind OwnerKind `bson:"owner_kind" json:"owner_kind"`
	ID   string    `bson:"owner_id" json:"owner_id"`
}

func (o Owner) String() string { return string(o.Kind) + "/" + o.ID }

// Asset is the metadata record of one uploaded image. The derivative bytes
// are never part of the record; they live in the asset store.
type Asset struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerKind OwnerKind `bson:"owner_kind" json:"-"`
	OwnerID   string    `bson:"owner_id" json:"-"`
}

func (a *Asset) Owner() Owner { return Owner{Kind: a.OwnerKind, ID: a.OwnerID} }

// Size is a derivative bounding box.
type Size struct {
	Name   string
	Width  int
	Height int
}

var (
	SizeLarge  = Size{Name: "large", Width: 1440, Height: 900}
	SizeMedium = Size{Name: "medium", Width: 1280, Height: 800}
	SizeSmall  = Size{Name: "small", Width: 640, Height: 400}
)

// Sizes lists every derivative produced for an asset.
var Sizes = []Size{SizeLarge, SizeMedium, SizeSmall}

// ParseSize accepts only the three size tokens.
func ParseSize(token string) (Size, error) {
	for _, s := range Sizes {
		if s.Name == token {
			return s, nil
		}
	}
	return Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, token)
}

// ValidSegment reports whether v can be used as a single path segment.
func ValidSegment(v string) bool {
	if v == "" || v == "." || v == ".." {
		return false
	}
	return !strings.ContainsAny(v, `/\`) && !strings.ContainsRune(v, 0)
}
