package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	FirstName string         `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string         `gorm:"type:varchar(100);not null" json:"last_name"`
	Phone     string         `gorm:"type:varchar(11);uniqueIndex" json:"phone"`
	IsActive  bool           `gorm:"not null" json:"is_active"`
	Address   *Address       `gorm:"foreignKey:UserID" json:"address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Address is the single saved shipping address of a user.
type Address struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	City        string    `gorm:"type:varchar(100);not null" json:"city"`
	PostalCode  string    `gorm:"type:varchar(10)" json:"postal_code"`
	State       string    `gorm:"type:varchar(100);not null" json:"state"`
	Line        string    `gorm:"column:address;type:varchar(255);not null" json:"address"`
	Landmark    string    `gorm:"type:varchar(255)" json:"landmark"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Address) TableName() string {
	return "addresses"
}

// String formats the address as a single shipping line.
func (a *Address) String() string {
	s := fmt.Sprintf("%s, %s, %s", a.Line, a.City, a.State)
	if a.PostalCode != "" {
		s += " " + a.PostalCode
	}
	return s
}
