package models

import "time"

// Station is a node of the network where cargo is booked, loaded, unloaded or collected.
type Station struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:140;not null;uniqueIndex" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Vehicle struct {
	ID             int       `gorm:"primary_key" json:"id"`
	RegistrationNo string    `gorm:"size:64;not null;uniqueIndex" json:"registration_no"`
	Description    string    `gorm:"size:255" json:"description"`
	Disabled       bool      `gorm:"not null;default:false" json:"disabled"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStation struct {
	Name string `json:"name" validate:"required"`
}

type NewVehicle struct {
	RegistrationNo string `json:"registration_no" validate:"required"`
	Description    string `json:"description"`
}

func (input NewStation) Validate() error {
	return validateInput(input)
}

func (input NewVehicle) Validate() error {
	return validateInput(input)
}
