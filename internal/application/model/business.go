package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OwnershipType is the legal form of the business.
type OwnershipType string

const (
	OwnershipSingleProprietorship OwnershipType = "single_proprietorship"
	OwnershipPartnership          OwnershipType = "partnership"
	OwnershipCorporation          OwnershipType = "corporation"
	OwnershipCooperative          OwnershipType = "cooperative"
)

// DefaultOwnershipType is preselected on a new business information record.
const DefaultOwnershipType = OwnershipSingleProprietorship

// BusinessInformation holds the identity, registration and contact details of the business.
// Fields tagged required gate the business information step, in checklist order.
type BusinessInformation struct {
	ChildModel
	BusinessName       string        `gorm:"type:varchar(255);column:business_name" json:"businessName" validate:"required" label:"business name"`
	TIN                string        `gorm:"type:varchar(20);column:tin" json:"tin" validate:"required" label:"TIN"`
	OwnershipType      OwnershipType `gorm:"type:varchar(40);column:ownership_type" json:"ownershipType" validate:"required" label:"ownership type"`
	Street             string        `gorm:"type:varchar(255);column:street" json:"street" validate:"required" label:"street"`
	Barangay           string        `gorm:"type:varchar(120);column:barangay" json:"barangay" validate:"required" label:"barangay"`
	CityMunicipality   string        `gorm:"type:varchar(120);column:city_municipality" json:"cityMunicipality" validate:"required" label:"city/municipality"`
	Province           string        `gorm:"type:varchar(120);column:province" json:"province" validate:"required" label:"province"`
	ZipCode            string        `gorm:"type:varchar(10);column:zip_code" json:"zipCode" validate:"required" label:"zip code"`
	MobileNumber       string        `gorm:"type:varchar(20);column:mobile_number" json:"mobileNumber" validate:"required" label:"mobile number"`
	Email              string        `gorm:"type:varchar(255);column:email" json:"email" validate:"required" label:"email"`
	TradeName          string        `gorm:"type:varchar(255);column:trade_name" json:"tradeName"`
	RegistrationNumber string        `gorm:"type:varchar(60);column:registration_number" json:"registrationNumber"` // DTI/SEC/CDA number
	TelephoneNumber    string        `gorm:"type:varchar(20);column:telephone_number" json:"telephoneNumber"`
}

func (b *BusinessInformation) TableName() string {
	return "business_information"
}

// BusinessInformationPatch carries a partial edit; nil fields are left untouched.
type BusinessInformationPatch struct {
	BusinessName       *string        `json:"businessName,omitempty"`
	TIN                *string        `json:"tin,omitempty"`
	OwnershipType      *OwnershipType `json:"ownershipType,omitempty"`
	Street             *string        `json:"street,omitempty"`
	Barangay           *string        `json:"barangay,omitempty"`
	CityMunicipality   *string        `json:"cityMunicipality,omitempty"`
	Province           *string        `json:"province,omitempty"`
	ZipCode            *string        `json:"zipCode,omitempty"`
	MobileNumber       *string        `json:"mobileNumber,omitempty"`
	Email              *string        `json:"email,omitempty"`
	TradeName          *string        `json:"tradeName,omitempty"`
	RegistrationNumber *string        `json:"registrationNumber,omitempty"`
	TelephoneNumber    *string        `json:"telephoneNumber,omitempty"`
}

// Apply copies every non-nil field of p onto b.
func (b *BusinessInformation) Apply(p BusinessInformationPatch) {
	setString(&b.BusinessName, p.BusinessName)
	setString(&b.TIN, p.TIN)
	if p.OwnershipType != nil {
		b.OwnershipType = OwnershipType(strings.TrimSpace(string(*p.OwnershipType)))
	}
	setString(&b.Street, p.Street)
	setString(&b.Barangay, p.Barangay)
	setString(&b.CityMunicipality, p.CityMunicipality)
	setString(&b.Province, p.Province)
	setString(&b.ZipCode, p.ZipCode)
	setString(&b.MobileNumber, p.MobileNumber)
	setString(&b.Email, p.Email)
	setString(&b.TradeName, p.TradeName)
	setString(&b.RegistrationNumber, p.RegistrationNumber)
	setString(&b.TelephoneNumber, p.TelephoneNumber)
}

// BusinessOperations holds the physical and operational metadata of the business.
// None of its fields gate a step.
type BusinessOperations struct {
	ChildModel
	BusinessAreaSqm        decimal.NullDecimal `gorm:"type:numeric(12,2);column:business_area_sqm" json:"businessAreaSqm"`
	TotalEmployees         *int                `gorm:"column:total_employees" json:"totalEmployees,omitempty"`
	EmployeesResidingInLGU *int                `gorm:"column:employees_residing_in_lgu" json:"employeesResidingInLgu,omitempty"`
	MaleEmployees          *int                `gorm:"column:male_employees" json:"maleEmployees,omitempty"`
	FemaleEmployees        *int                `gorm:"column:female_employees" json:"femaleEmployees,omitempty"`
	VanCount               *int                `gorm:"column:van_count" json:"vanCount,omitempty"`
	TruckCount             *int                `gorm:"column:truck_count" json:"truckCount,omitempty"`
	MotorcycleCount        *int                `gorm:"column:motorcycle_count" json:"motorcycleCount,omitempty"`
	PropertyOwned          *bool               `gorm:"column:property_owned" json:"propertyOwned,omitempty"`
	LessorName             string              `gorm:"type:varchar(255);column:lessor_name" json:"lessorName"`
	MonthlyRental          decimal.NullDecimal `gorm:"type:numeric(15,2);column:monthly_rental" json:"monthlyRental"`
	LeaseStart             *time.Time          `gorm:"type:date;column:lease_start" json:"leaseStart,omitempty"`
	LeaseEnd               *time.Time          `gorm:"type:date;column:lease_end" json:"leaseEnd,omitempty"`
}

func (b *BusinessOperations) TableName() string {
	return "business_operations"
}

// BusinessOperationsPatch carries a partial edit; nil fields are left untouched.
type BusinessOperationsPatch struct {
	BusinessAreaSqm        *decimal.Decimal `json:"businessAreaSqm,omitempty"`
	TotalEmployees         *int             `json:"totalEmployees,omitempty"`
	EmployeesResidingInLGU *int             `json:"employeesResidingInLgu,omitempty"`
	MaleEmployees          *int             `json:"maleEmployees,omitempty"`
	FemaleEmployees        *int             `json:"femaleEmployees,omitempty"`
	VanCount               *int             `json:"vanCount,omitempty"`
	TruckCount             *int             `json:"truckCount,omitempty"`
	MotorcycleCount        *int             `json:"motorcycleCount,omitempty"`
	PropertyOwned          *bool            `json:"propertyOwned,omitempty"`
	LessorName             *string          `json:"lessorName,omitempty"`
	MonthlyRental          *decimal.Decimal `json:"monthlyRental,omitempty"`
	LeaseStart             *time.Time       `json:"leaseStart,omitempty"`
	LeaseEnd               *time.Time       `json:"leaseEnd,omitempty"`
}

// Apply copies every non-nil field of p onto b.
func (b *BusinessOperations) Apply(p BusinessOperationsPatch) {
	if p.BusinessAreaSqm != nil {
		b.BusinessAreaSqm = decimal.NewNullDecimal(*p.BusinessAreaSqm)
	}
	setInt(&b.TotalEmployees, p.TotalEmployees)
	setInt(&b.EmployeesResidingInLGU, p.EmployeesResidingInLGU)
	setInt(&b.MaleEmployees, p.MaleEmployees)
	setInt(&b.FemaleEmployees, p.FemaleEmployees)
	setInt(&b.VanCount, p.VanCount)
	setInt(&b.TruckCount, p.TruckCount)
	setInt(&b.MotorcycleCount, p.MotorcycleCount)
	if p.PropertyOwned != nil {
		owned := *p.PropertyOwned
		b.PropertyOwned = &owned
	}
	setString(&b.LessorName, p.LessorName)
	if p.MonthlyRental != nil {
		b.MonthlyRental = decimal.NewNullDecimal(*p.MonthlyRental)
	}
	if p.LeaseStart != nil {
		start := *p.LeaseStart
		b.LeaseStart = &start
	}
	if p.LeaseEnd != nil {
		end := *p.LeaseEnd
		b.LeaseEnd = &end
	}
}

// BusinessLine is one line of business declared on the application.
type BusinessLine struct {
	ChildModel
	LineOfBusiness   string          `gorm:"type:varchar(255);column:line_of_business;not null" json:"lineOfBusiness" validate:"required" label:"line of business"`
	ProductsServices string          `gorm:"type:text;column:products_services" json:"productsServices"`
	PSICCode         string          `gorm:"type:varchar(20);column:psic_code" json:"psicCode"`
	Units            int             `gorm:"column:units;not null;default:0" json:"units" validate:"gte=0" label:"units"`
	Capitalization   decimal.Decimal `gorm:"type:numeric(15,2);column:capitalization;not null;default:0" json:"capitalization"`
	GrossSales       decimal.Decimal `gorm:"type:numeric(15,2);column:gross_sales;not null;default:0" json:"grossSales"`
}

func (b *BusinessLine) TableName() string {
	return "business_lines"
}

// BusinessLineInput is the body of an add or update call for a business line.
type BusinessLineInput struct {
	LineOfBusiness   string          `json:"lineOfBusiness"`
	ProductsServices string          `json:"productsServices"`
	PSICCode         string          `json:"psicCode"`
	Units            int             `json:"units"`
	Capitalization   decimal.Decimal `json:"capitalization"`
	GrossSales       decimal.Decimal `json:"grossSales"`
}

// Apply replaces the editable fields of b with in.
func (b *BusinessLine) Apply(in BusinessLineInput) {
	b.LineOfBusiness = strings.TrimSpace(in.LineOfBusiness)
	b.ProductsServices = strings.TrimSpace(in.ProductsServices)
	b.PSICCode = strings.TrimSpace(in.PSICCode)
	b.Units = in.Units
	b.Capitalization = in.Capitalization
	b.GrossSales = in.GrossSales
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst **int, src *int) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
