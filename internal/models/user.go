package models

import (
	"time"
)

// Role is a privilege group a user can belong to
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleProfessor      Role = "PROFESSOR"
	RoleStudent        Role = "STUDENT"
	RoleWorkspaceAdmin Role = "WORKSPACE_ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessor, RoleStudent, RoleWorkspaceAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID        string           `json:"id" gorm:"primaryKey"`
	Username  string           `json:"username" gorm:"unique;not null"`
	Password  string           `json:"-" gorm:"not null"`
	Roles     []RoleMembership `json:"roles,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// RoleMembership grants a role to a user
type RoleMembership struct {
	UserID string `json:"userId" gorm:"primaryKey"`
	Role   Role   `json:"role" gorm:"primaryKey"`
}

// TableName specifies the table name for RoleMembership Model
func (RoleMembership) TableName() string {
	return "role_memberships"
}

// Subject is owned by a professor and groups courses
type Subject struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"not null"`
	OwnerID string `json:"ownerId" gorm:"not null;index"`
}

// TableName specifies the table name for Subject Model
func (Subject) TableName() string {
	return "subjects"
}

// Course is a yearly run of a subject
type Course struct {
	ID        string `json:"id" gorm:"primaryKey"`
	SubjectID string `json:"subjectId" gorm:"not null;index"`
	Name      string `json:"name" gorm:"not null"`
}

// TableName specifies the table name for Course Model
func (Course) TableName() string {
	return "courses"
}

// Project is a team assignment inside a course
type Project struct {
	ID       string `json:"id" gorm:"primaryKey"`
	CourseID string `json:"courseId" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null"`
}

// TableName specifies the table name for Project Model
func (Project) TableName() string {
	return "projects"
}

// ProjectMember links a user to a project team
type ProjectMember struct {
	ProjectID string `json:"projectId" gorm:"primaryKey"`
	UserID    string `json:"userId" gorm:"primaryKey"`
}

// TableName specifies the table name for ProjectMember Model
func (ProjectMember) TableName() string {
	return "project_members"
}
