package catalog

// Class is the UPnP object class of a catalog node.
type Class int

const (
	ClassContainer Class = iota
	ClassStorageFolder
	ClassMusicArtist
	ClassMusicAlbum
	ClassMusicGenre
	ClassMusicTrack
	ClassAudioFile
	ClassVideoFile
	ClassPhotoFile
)

var classNames = map[Class]string{
	ClassContainer:     "object.container",
	ClassStorageFolder: "object.container.storageFolder",
	ClassMusicArtist:   "object.container.person.musicArtist",
	ClassMusicAlbum:    "object.container.album.musicAlbum",
	ClassMusicGenre:    "object.container.genre.musicGenre",
	ClassMusicTrack:    "object.item.audioItem.musicTrack",
	ClassAudioFile:     "object.item.audioItem",
	ClassVideoFile:     "object.item.videoItem",
	ClassPhotoFile:     "object.item.imageItem.photo",
}

// String returns the upnp:class value.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return classNames[ClassContainer]
}

// IsContainer reports whether nodes of this class may hold children.
func (c Class) IsContainer() bool {
	switch c {
	case ClassContainer, ClassStorageFolder, ClassMusicArtist, ClassMusicAlbum, ClassMusicGenre:
		return true
	default:
		return false
	}
}
