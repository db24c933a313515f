package model

import (
	"strings"
	"time"
)

// Declaration is the signed attestation that closes the application.
type Declaration struct {
	ChildModel
	SignatureURL string     `gorm:"type:text;column:signature_url" json:"signatureUrl" validate:"required" label:"signature"`
	Agreed       bool       `gorm:"column:agreed;not null;default:false" json:"agreed" validate:"required" label:"agreement checkbox"`
	SignatureKey string     `gorm:"type:varchar(255);column:signature_key" json:"-"`
	SignerName   string     `gorm:"type:varchar(255);column:signer_name" json:"signerName"`
	SignerTitle  string     `gorm:"type:varchar(120);column:signer_title" json:"signerTitle"`
	SignedAt     *time.Time `gorm:"column:signed_at" json:"signedAt,omitempty"`
}

func (d *Declaration) TableName() string {
	return "declarations"
}

// DeclarationPatch carries a partial edit; nil fields are left untouched.
type DeclarationPatch struct {
	Agreed      *bool   `json:"agreed,omitempty"`
	SignerName  *string `json:"signerName,omitempty"`
	SignerTitle *string `json:"signerTitle,omitempty"`
}

// Apply copies every non-nil field of p onto d.
func (d *Declaration) Apply(p DeclarationPatch) {
	if p.Agreed != nil {
		d.Agreed = *p.Agreed
	}
	setString(&d.SignerName, p.SignerName)
	setString(&d.SignerTitle, p.SignerTitle)
}

// SetSignature records a newly uploaded signature image.
func (d *Declaration) SetSignature(key, url string, at time.Time) {
	d.SignatureKey = strings.TrimSpace(key)
	d.SignatureURL = strings.TrimSpace(url)
	signedAt := at.UTC()
	d.SignedAt = &signedAt
}

// ClearSignature removes the signature reference.
func (d *Declaration) ClearSignature() {
	d.SignatureKey = ""
	d.SignatureURL = ""
	d.SignedAt = nil
}
