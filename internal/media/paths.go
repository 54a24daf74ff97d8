package models

import "path"

const (
	// RootDir is the top of the blob namespace.
	RootDir = "images"
	// Ext is the extension of every derivative.
	Ext = "webp"
	// ContentType is served for every derivative.
	ContentType = "image/webp"
)

// Location returns images/{kind}/{ownerID}/{size}/{assetID}.webp.
func Location(owner Owner, size Size, assetID string) string {
	return path.Join(OwnerDir(owner), size.Name, assetID+"."+Ext)
}

// Locations returns the paths of all derivatives of one asset, in Sizes order.
func Locations(owner Owner, assetID string) []string {
	out := make([]string, 0, len(Sizes))
	for _, s := range Sizes {
		out = append(out, Location(owner, s, assetID))
	}
	return out
}

// OwnerDir is the subtree holding every derivative of one owner.
func OwnerDir(owner Owner) string {
	return path.Join(KindRoot(owner.Kind), owner.ID)
}

// KindRoot is the directory shared by all owners of a kind. Ancestor cleanup
// stops here.
func KindRoot(kind OwnerKind) string {
	return path.Join(RootDir, kind.Segment())
}
