package model

import "maps"

// Dataset is a named unit of persistent storage. The DatasetID is a UUID
// string assigned when the dataset is first configured and never changes.
type Dataset struct {
	DatasetID   string            `json:"dataset_id"`
	MaximumSize int64             `json:"maximum_size,omitempty"` // bytes, 0 means unspecified
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Equal reports structural equality.
func (d Dataset) Equal(other Dataset) bool {
	return d.DatasetID == other.DatasetID &&
		d.MaximumSize == other.MaximumSize &&
		maps.Equal(d.Metadata, other.Metadata)
}

// Manifestation is a concrete copy of a Dataset present on some node. The
// primary manifestation is the writable copy; replicas are not primary.
type Manifestation struct {
	Dataset Dataset `json:"dataset"`
	Primary bool    `json:"primary"`
}

// DatasetID returns the ID of the manifested dataset.
func (m Manifestation) DatasetID() string {
	return m.Dataset.DatasetID
}

// Equal reports structural equality.
func (m Manifestation) Equal(other Manifestation) bool {
	return m.Primary == other.Primary && m.Dataset.Equal(other.Dataset)
}

// AttachedVolume binds a manifestation into an application's filesystem at
// the given mountpoint. An empty mountpoint means the manifestation is
// attached but not mounted anywhere.
type AttachedVolume struct {
	Manifestation Manifestation `json:"manifestation"`
	Mountpoint    string        `json:"mountpoint,omitempty"`
}

// Dataset returns the dataset backing the attached manifestation.
func (v AttachedVolume) Dataset() Dataset {
	return v.Manifestation.Dataset
}

// Equal reports structural equality.
func (v AttachedVolume) Equal(other AttachedVolume) bool {
	return v.Mountpoint == other.Mountpoint &&
		v.Manifestation.Equal(other.Manifestation)
}
