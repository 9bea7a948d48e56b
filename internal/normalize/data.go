package normalize

import (
	"net/url"
)

// ReferenceKind distinguishes the element/attribute pair a reference was
// pulled from (spec.md §4.5's seven anchor/resource kinds). Carried purely
// for observability attribution; it never changes resolution semantics.
type ReferenceKind string

const (
	KindAnchor ReferenceKind = "a.href"
	KindIframe ReferenceKind = "iframe.src"
	KindVideo  ReferenceKind = "video.src"
	KindSource ReferenceKind = "source.src"
	KindAudio  ReferenceKind = "audio.src"
	KindEmbed  ReferenceKind = "embed.src"
	KindObject ReferenceKind = "object.data"
)

// ReferenceParam carries everything Normalize needs to resolve one raw
// attribute value pulled off a page into an absolute, normalized URL.
type ReferenceParam struct {
	pageURL       url.URL
	keepFragments bool
	kind          ReferenceKind
}

func NewReferenceParam(pageURL url.URL, keepFragments bool, kind ReferenceKind) ReferenceParam {
	return ReferenceParam{
		pageURL:       pageURL,
		keepFragments: keepFragments,
		kind:          kind,
	}
}

func (p ReferenceParam) PageURL() url.URL {
	return p.pageURL
}

func (p ReferenceParam) Kind() ReferenceKind {
	return p.kind
}

// NormalizedReference is the resolved, absolute form of a raw href/src
// value, ready for same-site classification and link-equivalence dedup.
type NormalizedReference struct {
	url url.URL
}

func NewNormalizedReference(u url.URL) NormalizedReference {
	return NormalizedReference{url: u}
}

func (n NormalizedReference) URL() url.URL {
	return n.url
}
