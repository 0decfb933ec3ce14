package student

import "time"

type Student struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	FullName  string    `gorm:"column:full_name;not null" json:"full_name"`
	ClassName string    `gorm:"column:class_name" json:"class_name"`
	IsActive  bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Student) TableName() string {
	return "students"
}
