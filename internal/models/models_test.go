package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageListParsing(t *testing.T) {
	doc := Document{IgnorePages: "2, 5,9", SetupPages: ""}

	ignore, err := doc.IgnorePageList()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 9}, ignore)

	setup, err := doc.SetupPageList()
	require.NoError(t, err)
	assert.Empty(t, setup)
}

func TestPageListParsingRejectsBadInput(t *testing.T) {
	doc := Document{IgnorePages: "2,abc"}
	_, err := doc.IgnorePageList()
	assert.Error(t, err)

	doc = Document{IgnorePages: "0"}
	_, err = doc.IgnorePageList()
	assert.Error(t, err)
}

func TestDisplayURLPrefersPublicURL(t *testing.T) {
	doc := Document{URL: "https://cdn.example.com/rules.pdf", PublicURL: "https://example.com/rules"}
	assert.Equal(t, "https://example.com/rules", doc.DisplayURL())

	doc.PublicURL = ""
	assert.Equal(t, "https://cdn.example.com/rules.pdf", doc.DisplayURL())
}
