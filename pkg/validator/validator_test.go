package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewPayload struct {
	Rating int    `validate:"required,min=1,max=5"`
	Title  string `validate:"max=255"`
	Body   string `validate:"required"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(reviewPayload{Rating: 4, Title: "Solid", Body: "Does what it says."})
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(reviewPayload{Rating: 4})

	require.Error(t, err)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields(), "Body")
	assert.Equal(t, "is required", valErr.Fields()["Body"])
}

func TestValidate_RangeViolations(t *testing.T) {
	err := Validate(reviewPayload{Rating: 6, Body: "x"})

	require.Error(t, err)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields(), "Rating")
	assert.Contains(t, valErr.Error(), "Rating")
}

func TestValidate_MultipleFields(t *testing.T) {
	err := Validate(reviewPayload{})

	require.Error(t, err)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Len(t, valErr.Fields(), 2)
}
