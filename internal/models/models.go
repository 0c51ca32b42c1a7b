package models

import "time"

// Collection names in the document store
const (
	CollectionUsers      = "users"
	CollectionRecipes    = "recipes"
	CollectionCategories = "categories"
)

// User represents a registered user's profile document
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	FullName        string `json:"fullName"`
	Location        string `json:"location"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	Admin           bool   `json:"admin"`
}

// Recipe represents a recipe document
type Recipe struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CookTime     string    `json:"cookTime"`
	Servings     string    `json:"servings"`
	Ingredients  []string  `json:"ingredients"`
	Steps        []string  `json:"steps"`
	Categories   []string  `json:"categories"`
	Image        string    `json:"image"`
	ImagePending bool      `json:"imagePending"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Category represents a pre-seeded recipe category
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CatImg      string `json:"catimg"`
}

// RecipeDetail is a recipe joined with its author and category names
type RecipeDetail struct {
	Recipe         *Recipe  `json:"recipe"`
	AuthorUsername string   `json:"authorUsername"`
	CategoryNames  []string `json:"categoryNames"`
}

// SessionEventKind tells what happened to a session
type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent is pushed to session observers
type SessionEvent struct {
	Kind      SessionEventKind `json:"kind"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	At        time.Time        `json:"at"`
}
