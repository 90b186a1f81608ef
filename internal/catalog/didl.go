package catalog

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

// DIDL-Lite namespaces declared on every Result document.
const (
	NamespaceDIDL = "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
	NamespaceDC   = "http://purl.org/dc/elements/1.1/"
	NamespaceUPnP = "urn:schemas-upnp-org:metadata-1-0/upnp/"
	NamespaceDLNA = "urn:schemas-dlna-org:metadata-1-0/"
)

// Metadata keys rendered as upnp/dc properties when present on a leaf.
const (
	MetaArtist = "artist"
	MetaAlbum  = "album"
	MetaGenre  = "genre"
	MetaTitle  = "title"
)

type didlLite struct {
	XMLName   xml.Name `xml:"DIDL-Lite"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsDC   string   `xml:"xmlns:dc,attr"`
	XmlnsUPnP string   `xml:"xmlns:upnp,attr"`
	XmlnsDLNA string   `xml:"xmlns:dlna,attr"`
	Objects   []any
}

type didlObject struct {
	ID         string `xml:"id,attr"`
	ParentID   string `xml:"parentID,attr"`
	Restricted string `xml:"restricted,attr"`
	Title      string `xml:"dc:title"`
	Class      string `xml:"upnp:class"`
	Date       string `xml:"dc:date,omitempty"`
}

type didlContainer struct {
	XMLName xml.Name `xml:"container"`
	didlObject
	ChildCount int `xml:"childCount,attr"`
}

type didlItem struct {
	XMLName xml.Name `xml:"item"`
	didlObject
	Artist string        `xml:"upnp:artist,omitempty"`
	Album  string        `xml:"upnp:album,omitempty"`
	Genre  string        `xml:"upnp:genre,omitempty"`
	Res    *didlResource `xml:"res,omitempty"`
}

type didlResource struct {
	ProtocolInfo string `xml:"protocolInfo,attr"`
	Size         int64  `xml:"size,attr,omitempty"`
	URL          string `xml:",chardata"`
}

// MarshalDIDL renders items as a DIDL-Lite document. Leaf resources point at
// contentURL followed by the item id.
func MarshalDIDL(items []*Item, contentURL string) (string, error) {
	doc := didlLite{
		Xmlns:     NamespaceDIDL,
		XmlnsDC:   NamespaceDC,
		XmlnsUPnP: NamespaceUPnP,
		XmlnsDLNA: NamespaceDLNA,
	}

	for _, item := range items {
		obj := item.didlObject()
		if item.container {
			doc.Objects = append(doc.Objects, didlContainer{
				didlObject: obj,
				ChildCount: item.ChildCount(),
			})
			continue
		}

		md := item.Metadata()
		entry := didlItem{
			didlObject: obj,
			Artist:     md[MetaArtist],
			Album:      md[MetaAlbum],
			Genre:      md[MetaGenre],
		}
		if res := item.Resource(); res != nil {
			entry.Res = &didlResource{
				ProtocolInfo: res.ProtocolInfo,
				Size:         res.Size,
				URL:          contentURL + "/" + item.id.String(),
			}
		}
		doc.Objects = append(doc.Objects, entry)
	}

	out, err := xml.MarshalIndent(doc, "", " ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal DIDL-Lite: %w", err)
	}
	return string(out), nil
}

func (it *Item) didlObject() didlObject {
	it.mu.RLock()
	defer it.mu.RUnlock()

	obj := didlObject{
		ID:         it.id.String(),
		ParentID:   it.ParentID(),
		Restricted: strconv.Itoa(boolToInt(it.restricted)),
		Title:      it.titleLocked(),
		Class:      it.class.String(),
	}
	if !it.modified.IsZero() {
		obj.Date = it.modified.UTC().Format(time.RFC3339)
	}
	return obj
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
