package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("https://cdn.example.com"))
	assert.True(t, IsValidURL("http://localhost:9000/bucket"))
	assert.False(t, IsValidURL("ftp://cdn.example.com"))
	assert.False(t, IsValidURL("cdn.example.com"))
	assert.False(t, IsValidURL(""))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/Android/version.txt", JoinURL("https://cdn.example.com/", "/Android/", "version.txt"))
	assert.Equal(t, "https://cdn.example.com/a/b.bundle", JoinURL("https://cdn.example.com", "", "a/b.bundle"))
}
