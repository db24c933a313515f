package model

// OwnerInformation holds the personal identity and residence of the business owner.
// Fields tagged required gate the owner information step, in checklist order.
type OwnerInformation struct {
	ChildModel
	Surname          string `gorm:"type:varchar(120);column:surname" json:"surname" validate:"required" label:"surname"`
	GivenName        string `gorm:"type:varchar(120);column:given_name" json:"givenName" validate:"required" label:"given name"`
	Age              *int   `gorm:"column:age" json:"age" validate:"required" label:"age"`
	Sex              string `gorm:"type:varchar(20);column:sex" json:"sex" validate:"required" label:"sex"`
	CivilStatus      string `gorm:"type:varchar(30);column:civil_status" json:"civilStatus" validate:"required" label:"civil status"`
	Nationality      string `gorm:"type:varchar(60);column:nationality" json:"nationality" validate:"required" label:"nationality"`
	Street           string `gorm:"type:varchar(255);column:street" json:"street" validate:"required" label:"street"`
	Barangay         string `gorm:"type:varchar(120);column:barangay" json:"barangay" validate:"required" label:"barangay"`
	CityMunicipality string `gorm:"type:varchar(120);column:city_municipality" json:"cityMunicipality" validate:"required" label:"city/municipality"`
	Province         string `gorm:"type:varchar(120);column:province" json:"province" validate:"required" label:"province"`
	ZipCode          string `gorm:"type:varchar(10);column:zip_code" json:"zipCode" validate:"required" label:"zip code"`
	MiddleName       string `gorm:"type:varchar(120);column:middle_name" json:"middleName"`
	Suffix           string `gorm:"type:varchar(20);column:suffix" json:"suffix"`
}

func (o *OwnerInformation) TableName() string {
	return "owner_information"
}

// OwnerInformationPatch carries a partial edit; nil fields are left untouched.
type OwnerInformationPatch struct {
	Surname          *string `json:"surname,omitempty"`
	GivenName        *string `json:"givenName,omitempty"`
	Age              *int    `json:"age,omitempty"`
	Sex              *string `json:"sex,omitempty"`
	CivilStatus      *string `json:"civilStatus,omitempty"`
	Nationality      *string `json:"nationality,omitempty"`
	Street           *string `json:"street,omitempty"`
	Barangay         *string `json:"barangay,omitempty"`
	CityMunicipality *string `json:"cityMunicipality,omitempty"`
	Province         *string `json:"province,omitempty"`
	ZipCode          *string `json:"zipCode,omitempty"`
	MiddleName       *string `json:"middleName,omitempty"`
	Suffix           *string `json:"suffix,omitempty"`
}

// Apply copies every non-nil field of p onto o.
func (o *OwnerInformation) Apply(p OwnerInformationPatch) {
	setString(&o.Surname, p.Surname)
	setString(&o.GivenName, p.GivenName)
	setInt(&o.Age, p.Age)
	setString(&o.Sex, p.Sex)
	setString(&o.CivilStatus, p.CivilStatus)
	setString(&o.Nationality, p.Nationality)
	setString(&o.Street, p.Street)
	setString(&o.Barangay, p.Barangay)
	setString(&o.CityMunicipality, p.CityMunicipality)
	setString(&o.Province, p.Province)
	setString(&o.ZipCode, p.ZipCode)
	setString(&o.MiddleName, p.MiddleName)
	setString(&o.Suffix, p.Suffix)
}

// FillBlanks copies values from p into fields of o that are still empty.
// Fields that already hold a value are never overwritten.
func (o *OwnerInformation) FillBlanks(p OwnerInformationPatch) {
	fill := func(dst *string, src *string) {
		if *dst == "" && src != nil {
			setString(dst, src)
		}
	}
	fill(&o.Surname, p.Surname)
	fill(&o.GivenName, p.GivenName)
	if o.Age == nil {
		setInt(&o.Age, p.Age)
	}
	fill(&o.Sex, p.Sex)
	fill(&o.CivilStatus, p.CivilStatus)
	fill(&o.Nationality, p.Nationality)
	fill(&o.Street, p.Street)
	fill(&o.Barangay, p.Barangay)
	fill(&o.CityMunicipality, p.CityMunicipality)
	fill(&o.Province, p.Province)
	fill(&o.ZipCode, p.ZipCode)
	fill(&o.MiddleName, p.MiddleName)
	fill(&o.Suffix, p.Suffix)
}
