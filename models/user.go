package models

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	UserActive  = "active"
	UserBlocked = "blocked"
)

// User - сотрудник агентства с доступом в систему.
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"unique;not null"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-" gorm:"not null"`
	Status       string `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	Roles        []Role `json:"roles" gorm:"many2many:user_roles;"`
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// SetPassword хеширует пароль через bcrypt.
func (u *User) SetPassword(password string) error {
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// CreateUser заводит пользователя с ролями по именам. Роли создаются при отсутствии.
func CreateUser(db *gorm.DB, login, fullName, password string, roles ...string) (*User, error) {
	user := User{Login: strings.TrimSpace(login), FullName: fullName, Status: UserActive}
	if user.Login == "" {
		return nil, errors.New("login is empty")
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, name := range roles {
			role := Role{Name: name}
			if err := tx.Where(Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("role %q: %w", name, err)
			}
			user.Roles = append(user.Roles, role)
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
