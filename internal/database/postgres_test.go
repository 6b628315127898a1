package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "ticket-to-ride", slugify("Ticket to Ride"))
	assert.Equal(t, "7-wonders-duel", slugify("7 Wonders: Duel"))
	assert.Equal(t, "carcassonne", slugify("  Carcassonne  "))
	assert.Equal(t, "dead-of-winter", slugify("Dead of Winter!!"))
}
