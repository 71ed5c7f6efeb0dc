// Package prompts manages the instructions sent to the remote mapping
// collaborator. Each category has built-in default instructions; an
// active named override replaces them for that category.
package prompts

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for one category.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a new prompt override.
type CreateCommand struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Instructions string   `json:"instructions"`
	Description  *string  `json:"description"`
}

// UpdateCommand carries the data needed to update an existing prompt override.
type UpdateCommand struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Instructions string   `json:"instructions"`
	Description  *string  `json:"description"`
}

func (c CreateCommand) validate() error {
	return validateFields(c.Name, c.Category, c.Instructions)
}

func (c UpdateCommand) validate() error {
	return validateFields(c.Name, c.Category, c.Instructions)
}

func validateFields(name string, category Category, instructions string) error {
	if name == "" || instructions == "" {
		return ErrInvalidPrompt
	}
	if len(instructions) > MaxInstructionsLength {
		return ErrInstructionsTooLong
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return err
	}
	return nil
}
