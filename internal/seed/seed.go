// Package seed loads fixture accounts and categories from YAML and upserts
// them into the store.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// File is the on-disk seed document.
type File struct {
	Users      []User     `yaml:"users"`
	Categories []Category `yaml:"categories"`
}

// User is a seeded account. Password is plaintext and hashed on apply.
type User struct {
	Name           string      `yaml:"name"`
	Email          string      `yaml:"email"`
	Password       string      `yaml:"password"`
	Role           domain.Role `yaml:"role"`
	Department     string      `yaml:"department"`
	Identification string      `yaml:"identification"`
}

// Category is a seeded category.
type Category struct {
	Name        string `yaml:"name"`
	Department  string `yaml:"department"`
	Description string `yaml:"description"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields and role names.
func (f *File) Validate() error {
	emails := map[string]bool{}
	for i, u := range f.Users {
		if strings.TrimSpace(u.Email) == "" || strings.TrimSpace(u.Name) == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: name, email and password are required", i)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if emails[key] {
			return fmt.Errorf("users[%d]: duplicate email %s", i, u.Email)
		}
		emails[key] = true
	}
	names := map[string]bool{}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Department) == "" {
			return fmt.Errorf("categories[%d]: name and department are required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("categories[%d]: duplicate name %s", i, c.Name)
		}
		names[c.Name] = true
	}
	return nil
}

// Apply upserts every user and category. Existing rows keep their ids.
func Apply(ctx context.Context, f *File, users repository.UserRepository, categories repository.CategoryRepository, bcryptCost int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, u := range f.Users {
		hash, err := auth.HashPassword(u.Password, bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		user := &domain.User{
			Name:           strings.TrimSpace(u.Name),
			Email:          strings.ToLower(strings.TrimSpace(u.Email)),
			PasswordHash:   hash,
			Role:           u.Role,
			Department:     optional(u.Department),
			Identification: optional(u.Identification),
		}
		if err := users.UpsertByEmail(ctx, user); err != nil {
			return fmt.Errorf("upsert user %s: %w", user.Email, err)
		}
		logger.Info("seeded user", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	}
	for _, c := range f.Categories {
		category := &domain.Category{
			Name:        strings.TrimSpace(c.Name),
			Department:  strings.TrimSpace(c.Department),
			Description: optional(c.Description),
		}
		if err := categories.UpsertByName(ctx, category); err != nil {
			return fmt.Errorf("upsert category %s: %w", category.Name, err)
		}
		logger.Info("seeded category", zap.String("name", category.Name))
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
