package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatParams_Validate(t *testing.T) {
	assert.Nil(t, Validate(&ChatParams{Message: "price?"}))

	errs := Validate(&ChatParams{})
	assert.Equal(t, "failed on 'required' tag", errs["Message"])

	errs = Validate(&ChatParams{Message: "   \n"})
	assert.Equal(t, "failed on 'notblank' tag", errs["Message"])
}

func TestSessionParams_Validate(t *testing.T) {
	ok := SessionParams{Name: "Amina", Company: "Jua Power", BusinessSector: "Energy"}
	assert.Nil(t, Validate(&ok))

	errs := Validate(&SessionParams{Name: "Amina"})
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, "Company")
	assert.Contains(t, errs, "BusinessSector")
}

func TestSession_HasDocument(t *testing.T) {
	s := Session{}
	assert.False(t, s.HasDocument())
	s.DocumentPath = "uploads/x.pdf"
	assert.True(t, s.HasDocument())
}
