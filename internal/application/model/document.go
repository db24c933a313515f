package model

// Document is a supporting requirement uploaded for an application
// (barangay clearance, lease contract, DTI certificate and the like).
type Document struct {
	ChildModel
	Name     string `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Key      string `gorm:"type:varchar(255);column:storage_key;not null" json:"key"`
	URL      string `gorm:"type:text;column:url;not null" json:"url"`
	Size     int64  `gorm:"column:size;not null" json:"size"`
	MimeType string `gorm:"type:varchar(120);column:mime_type;not null" json:"mimeType"`
}

func (d *Document) TableName() string {
	return "documents"
}
