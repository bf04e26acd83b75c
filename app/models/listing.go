package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Fallback values used when the source feed omits optional fields.
const (
	ListingFallbackTitle  = "Sans titre"
	ListingFallbackClient = "Non précisé"
)

// Listing is the locally persisted representation of a tender notice, either
// synced from the BOAMP open-data feed or entered manually. Identity is the
// ExternalRef natural key; sync never hard-deletes a listing.
type Listing struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalRef    string     `gorm:"uniqueIndex;type:varchar(100);not null" json:"external_ref" validate:"required,max=100"`
	Title          string     `gorm:"type:varchar(500);not null" json:"title" validate:"required,max=500"`
	ClientName     string     `gorm:"type:varchar(300)" json:"client_name" validate:"max=300"`
	Description    string     `gorm:"type:text" json:"description"`
	Deadline       *time.Time `gorm:"type:timestamp;default:null" json:"deadline,omitempty"`
	Amount         *float64   `gorm:"type:decimal(15,2);default:null" json:"amount,omitempty"`
	Location       string     `gorm:"type:varchar(200);index" json:"location"`
	PublishedAt    *time.Time `gorm:"type:timestamp;default:null;index" json:"published_at,omitempty"`
	ProcedureType  string     `gorm:"type:varchar(100)" json:"procedure_type"`
	CategoryCode   string     `gorm:"type:varchar(50);index" json:"category_code"`
	SourceURL      string     `gorm:"type:varchar(500)" json:"source_url"`
	Visible        bool       `gorm:"default:true;index" json:"visible"`
	ViewCount      int64      `gorm:"default:0" json:"view_count"`
	RawPayloadJSON string     `gorm:"type:longtext" json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Listing model
func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) Validate() error {
	v := validator.New()

	return v.Struct(l)
}
