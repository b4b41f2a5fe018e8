package models

import "time"

type User struct {
	ID        string `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name      string `gorm:"size:255;not null"`
	Email     string `gorm:"size:320;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

type Collaborator struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null"`
	Email     string `gorm:"size:256;not null;uniqueIndex:collaborators_email_key"`
	CPF       string `gorm:"column:cpf;type:char(11);not null;uniqueIndex:collaborators_cpf_key"`
	City      string `gorm:"size:256;not null"`
	State     string `gorm:"size:256;not null"`
	UserID    string `gorm:"type:uuid;index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Collaborator) TableName() string {
	return "collaborators"
}
