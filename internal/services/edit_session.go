package services

import (
	"fmt"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
)

// EditState is the state of one recipe edit session
type EditState string

const (
	StateEmpty         EditState = "empty"
	StateEditing       EditState = "editing"
	StateSubmitting    EditState = "submitting"
	StateSaved         EditState = "saved"
	StateAwaitingImage EditState = "awaiting_image"
	StateImageAttached EditState = "image_attached"
	StateFailed        EditState = "failed"
)

var editTransitions = map[EditState][]EditState{
	StateEmpty:         {StateEditing},
	StateEditing:       {StateEditing, StateSubmitting},
	StateSubmitting:    {StateSaved, StateFailed},
	StateSaved:         {StateAwaitingImage, StateEditing},
	StateAwaitingImage: {StateImageAttached, StateFailed},
	StateImageAttached: {StateEditing},
	StateFailed:        {StateEditing, StateSubmitting},
}

// EditSession tracks a recipe from an empty form through save and image attach.
// RecipeID is empty until the first successful save of a new recipe.
type EditSession struct {
	RecipeID string
	Input    RecipeInput
	Err      error
	state    EditState
}

// NewEditSession starts an empty session for a new recipe
func NewEditSession() *EditSession {
	return &EditSession{state: StateEmpty}
}

// EditExisting starts a session pre-filled from a stored recipe
func EditExisting(recipe *models.Recipe) *EditSession {
	return &EditSession{
		RecipeID: recipe.ID,
		Input: RecipeInput{
			Title:       recipe.Title,
			Description: recipe.Description,
			CookTime:    recipe.CookTime,
			Servings:    recipe.Servings,
			Ingredients: recipe.Ingredients,
			Steps:       recipe.Steps,
			Categories:  recipe.Categories,
		},
		state: StateEditing,
	}
}

// State returns the current state
func (e *EditSession) State() EditState {
	return e.state
}

// Edit replaces the form fields
func (e *EditSession) Edit(input RecipeInput) error {
	if err := e.transition(StateEditing); err != nil {
		return err
	}
	e.Input = input
	e.Err = nil
	return nil
}

func (e *EditSession) transition(to EditState) error {
	for _, allowed := range editTransitions[e.state] {
		if allowed == to {
			e.state = to
			return nil
		}
	}
	return apperror.Validation("state", fmt.Sprintf("cannot move recipe edit from %s to %s", e.state, to))
}

func (e *EditSession) fail(err error) {
	e.Err = err
	e.state = StateFailed
}
