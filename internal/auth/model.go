package auth

import (
	"strings"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

// Role is the single permission flag of a user.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
)

// User is a portal account. Profile fields are optional and only used to
// pre-fill the owner information step of a new application.
type User struct {
	model.BaseModel
	Email            string `gorm:"type:varchar(255);column:email;not null;uniqueIndex" json:"email"`
	PasswordHash     string `gorm:"type:varchar(255);column:password_hash;not null" json:"-"`
	Role             Role   `gorm:"type:varchar(20);column:role;not null;default:applicant" json:"role"`
	Surname          string `gorm:"type:varchar(120);column:surname" json:"surname"`
	GivenName        string `gorm:"type:varchar(120);column:given_name" json:"givenName"`
	MiddleName       string `gorm:"type:varchar(120);column:middle_name" json:"middleName"`
	Suffix           string `gorm:"type:varchar(20);column:suffix" json:"suffix"`
	Sex              string `gorm:"type:varchar(20);column:sex" json:"sex"`
	CivilStatus      string `gorm:"type:varchar(30);column:civil_status" json:"civilStatus"`
	Nationality      string `gorm:"type:varchar(60);column:nationality" json:"nationality"`
	Street           string `gorm:"type:varchar(255);column:street" json:"street"`
	Barangay         string `gorm:"type:varchar(120);column:barangay" json:"barangay"`
	CityMunicipality string `gorm:"type:varchar(120);column:city_municipality" json:"cityMunicipality"`
	Province         string `gorm:"type:varchar(120);column:province" json:"province"`
	ZipCode          string `gorm:"type:varchar(10);column:zip_code" json:"zipCode"`
	MobileNumber     string `gorm:"type:varchar(20);column:mobile_number" json:"mobileNumber"`
}

func (u *User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may use the admin console.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ProfileInput is the body of a profile update. Nil fields are left untouched.
type ProfileInput struct {
	Surname          *string `json:"surname,omitempty"`
	GivenName        *string `json:"givenName,omitempty"`
	MiddleName       *string `json:"middleName,omitempty"`
	Suffix           *string `json:"suffix,omitempty"`
	Sex              *string `json:"sex,omitempty"`
	CivilStatus      *string `json:"civilStatus,omitempty"`
	Nationality      *string `json:"nationality,omitempty"`
	Street           *string `json:"street,omitempty"`
	Barangay         *string `json:"barangay,omitempty"`
	CityMunicipality *string `json:"cityMunicipality,omitempty"`
	Province         *string `json:"province,omitempty"`
	ZipCode          *string `json:"zipCode,omitempty"`
	MobileNumber     *string `json:"mobileNumber,omitempty"`
}

func (u *User) applyProfile(in ProfileInput) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&u.Surname, in.Surname)
	set(&u.GivenName, in.GivenName)
	set(&u.MiddleName, in.MiddleName)
	set(&u.Suffix, in.Suffix)
	set(&u.Sex, in.Sex)
	set(&u.CivilStatus, in.CivilStatus)
	set(&u.Nationality, in.Nationality)
	set(&u.Street, in.Street)
	set(&u.Barangay, in.Barangay)
	set(&u.CityMunicipality, in.CityMunicipality)
	set(&u.Province, in.Province)
	set(&u.ZipCode, in.ZipCode)
	set(&u.MobileNumber, in.MobileNumber)
}

// OwnerProfile maps the non-empty profile fields onto an owner information patch.
func (u *User) OwnerProfile() model.OwnerInformationPatch {
	value := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return model.OwnerInformationPatch{
		Surname:          value(u.Surname),
		GivenName:        value(u.GivenName),
		MiddleName:       value(u.MiddleName),
		Suffix:           value(u.Suffix),
		Sex:              value(u.Sex),
		CivilStatus:      value(u.CivilStatus),
		Nationality:      value(u.Nationality),
		Street:           value(u.Street),
		Barangay:         value(u.Barangay),
		CityMunicipality: value(u.CityMunicipality),
		Province:         value(u.Province),
		ZipCode:          value(u.ZipCode),
	}
}
