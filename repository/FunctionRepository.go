package repository

import (
	"fmt"
	"math/rand"
)

// GenerateProjectCode builds a share code like "AB10432" for new projects.
// The global rand source is shared so back-to-back calls keep drawing fresh
// values; collisions are left to the database unique constraint.
func GenerateProjectCode() string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	prefix := string(letters[rand.Intn(len(letters))]) + string(letters[rand.Intn(len(letters))])
	number := rand.Intn(90000) + 10000

	return fmt.Sprintf("%s%d", prefix, number)
}

// GeneratePlannerSceneName derives the scene name registered on the planner
// side for a project.
func GeneratePlannerSceneName(projectID int, projectName string) string {
	return fmt.Sprintf("%s/%04d", projectName, projectID)
}
