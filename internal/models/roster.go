package models

import (
	"time"

	"gorm.io/datatypes"
)

// Roster is a student's grade sheet. Version is bumped on every change to the sheet and keys
// cached evaluations.
type Roster struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	StudentName   string         `gorm:"size:255" json:"student_name"`
	StudentNumber string         `gorm:"size:64;index" json:"student_number"`
	Policy        string         `gorm:"size:64" json:"policy"`
	Version       uint           `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Modules       []RosterModule `gorm:"foreignKey:RosterID" json:"modules"`
}

// RosterModule is a named group of subjects inside a roster.
type RosterModule struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	RosterID  uint            `gorm:"index;not null" json:"roster_id"`
	Name      string          `gorm:"size:255" json:"name"`
	Position  int             `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Subjects  []RosterSubject `gorm:"foreignKey:ModuleID" json:"subjects"`
}

// RosterSubject holds the raw scores of a subject. Nil scores are cells left empty.
type RosterSubject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RosterID    uint      `gorm:"index;not null" json:"roster_id"`
	ModuleID    uint      `gorm:"index;not null" json:"module_id"`
	Name        string    `gorm:"size:255" json:"name"`
	Exam        *float64  `json:"exam"`
	Devoir      *float64  `json:"devoir"`
	Coefficient *float64  `json:"coefficient"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EvaluationRecord keeps the snapshot of a past evaluation of a roster.
type EvaluationRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	RosterID       uint           `gorm:"index;not null" json:"roster_id"`
	RosterVersion  uint           `gorm:"not null" json:"roster_version"`
	Policy         string         `gorm:"size:64;not null" json:"policy"`
	OverallAverage float64        `gorm:"not null" json:"overall_average"`
	Snapshot       datatypes.JSON `gorm:"type:json" json:"snapshot"`
	CreatedAt      time.Time      `json:"created_at"`
}
