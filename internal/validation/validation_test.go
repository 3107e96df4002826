package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

func TestUsername(t *testing.T) {
	valid := []string{"alice", "a.b@c+d-e_f", "Me2", "meme"}
	invalid := []string{"", "me", "ME", "Me", "with space", "semi;colon", "slash/"}
	for _, name := range valid {
		assert.True(t, Username(name), name)
	}
	for _, name := range invalid {
		assert.False(t, Username(name), name)
	}
}

type sample struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Slug     string `json:"slug" validate:"required,max=50,slug"`
	Score    int    `json:"score" validate:"gte=1,lte=10"`
}

func TestStruct(t *testing.T) {
	v := New()

	require.NoError(t, Struct(v, sample{Username: "bob", Slug: "sci-fi", Score: 10}))

	err := Struct(v, sample{Username: "me", Slug: "no spaces", Score: 11})
	require.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "slug")
	assert.Equal(t, "Value should be less than or equal to 10", verr.Fields["score"])
}
