package models

import (
	"time"

	"gorm.io/datatypes"
)

// ImportOptions is the jsonb shape of collaborator_imports.options.
type ImportOptions struct {
	Delimiter string `json:"delimiter"`
	Encoding  string `json:"encoding"`
	HasHeader bool   `json:"has_header"`
}

type CollaboratorImport struct {
	ID               string                            `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	UserID           string                            `gorm:"type:uuid;not null;index"`
	Filename         string                            `gorm:"type:text;not null"`
	OriginalFilename string                            `gorm:"type:text;not null"`
	Status           string                            `gorm:"type:text;not null"`
	Options          datatypes.JSONType[ImportOptions] `gorm:"type:jsonb;not null"`
	TotalRows        *int64                            `gorm:"type:bigint"`
	ProcessedRows    int64                             `gorm:"not null;default:0"`
	SuccessfulRows   int64                             `gorm:"not null;default:0"`
	FailedRows       int64                             `gorm:"not null;default:0"`
	Errors           datatypes.JSON                    `gorm:"type:jsonb;not null;default:'{}'"`
	Failure          datatypes.JSON                    `gorm:"type:jsonb"`
	Attempts         int                               `gorm:"not null;default:0"`
	ClaimedAt        *time.Time
	HeartbeatAt      *time.Time
	LeaseExpiresAt   *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (CollaboratorImport) TableName() string {
	return "collaborator_imports"
}
