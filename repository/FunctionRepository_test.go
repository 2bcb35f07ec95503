package repository

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProjectCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]{2}\d{5}$`)
	for i := 0; i < 20; i++ {
		assert.Regexp(t, pattern, GenerateProjectCode())
	}
}

func TestGenerateProjectCodeVariesOnRapidCalls(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[GenerateProjectCode()] = true
	}
	assert.Greater(t, len(seen), 1, "back-to-back codes must not all collapse to one value")
}

func TestGeneratePlannerSceneName(t *testing.T) {
	assert.Equal(t, "lakeside/0042", GeneratePlannerSceneName(42, "lakeside"))
	assert.Equal(t, "big/12345", GeneratePlannerSceneName(12345, "big"))
}
