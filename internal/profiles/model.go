package profiles

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the per-user commute and demographic document.
type Profile struct {
	UserID            string                      `gorm:"column:user_id;primaryKey;size:190;not null" json:"user_id"`
	FullName          *string                     `gorm:"column:full_name;size:320" json:"full_name"`
	DateOfBirth       *string                     `gorm:"column:date_of_birth;size:32" json:"date_of_birth"`
	Age               *int                        `gorm:"column:age" json:"age"`
	Gender            *string                     `gorm:"column:gender;size:64" json:"gender"`
	ProfilePhoto      *string                     `gorm:"column:profile_photo;type:text" json:"profile_photo"`
	OrganizationType  *string                     `gorm:"column:organization_type;size:64" json:"organization_type"`
	OrganizationName  *string                     `gorm:"column:organization_name;size:320;index" json:"organization_name"`
	OrganizationEmail *string                     `gorm:"column:organization_email;size:320" json:"organization_email"`
	Department        *string                     `gorm:"column:department;size:320" json:"department"`
	Designation       *string                     `gorm:"column:designation;size:320" json:"designation"`
	HomeStation       *string                     `gorm:"column:home_station;size:190" json:"home_station"`
	WorkStation       *string                     `gorm:"column:work_station;size:190;index" json:"work_station"`
	CommuteTimes      datatypes.JSONMap           `gorm:"column:commute_times" json:"commute_times"`
	TravelDays        datatypes.JSONSlice[string] `gorm:"column:travel_days" json:"travel_days"`
	Bio               *string                     `gorm:"column:bio;type:text" json:"bio"`
	Interests         datatypes.JSONSlice[string] `gorm:"column:interests" json:"interests"`
	PrivacySettings   datatypes.JSONMap           `gorm:"column:privacy_settings" json:"privacy_settings"`
	IsVerified        bool                        `gorm:"column:is_verified;not null;default:false" json:"is_verified"`
	CreatedAt         time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "user_profiles"
}
