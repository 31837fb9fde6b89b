package models

import "time"

// AcademicLevel is a program/level a student participant can belong to.
type AcademicLevel struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Faculty   string    `db:"faculty" json:"faculty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LevelBinding admits one academic level into an offering. It is the unit
// enrollments are made against; an offering carries one binding per eligible
// level.
type LevelBinding struct {
	ID         string    `db:"id" json:"id"`
	OfferingID string    `db:"offering_id" json:"offering_id"`
	LevelID    string    `db:"level_id" json:"level_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// LevelBindingDetail enriches a binding with level and offering context.
type LevelBindingDetail struct {
	LevelBinding
	LevelName    string `db:"level_name" json:"level_name"`
	OfferingName string `db:"offering_name" json:"offering_name"`
}
