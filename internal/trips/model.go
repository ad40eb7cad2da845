package trips

import (
	"time"

	"gorm.io/gorm"
)

// SingleActiveIndexName names the partial unique index that allows one active trip per user.
const SingleActiveIndexName = "idx_trips_single_active"

// Trip is one journey on a metro line.
type Trip struct {
	ID             string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID         string     `gorm:"column:user_id;size:190;not null;index:idx_trips_user_start,priority:1" json:"user_id"`
	FromStation    string     `gorm:"column:from_station;size:190;not null" json:"from_station"`
	ToStation      string     `gorm:"column:to_station;size:190;not null" json:"to_station"`
	Line           string     `gorm:"column:line;size:64;not null;index" json:"line"`
	CurrentStation *string    `gorm:"column:current_station;size:190" json:"current_station"`
	StartTime      time.Time  `gorm:"column:start_time;not null;index:idx_trips_user_start,priority:2" json:"start_time"`
	EndTime        *time.Time `gorm:"column:end_time" json:"end_time"`
	Active         bool       `gorm:"column:active;not null" json:"active"`
}

// TableName provides the explicit table binding for GORM.
func (Trip) TableName() string {
	return "trips"
}

// CreateSingleActiveIndex installs the partial unique index on trips(user_id) WHERE active.
func CreateSingleActiveIndex(db *gorm.DB) error {
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + SingleActiveIndexName + " ON trips(user_id) WHERE active").Error
}

// Patch carries the optional trip changes a rider may submit.
type Patch struct {
	CurrentStation *string
	Active         *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return (p.CurrentStation == nil || *p.CurrentStation == "") && p.Active == nil
}
