package password_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/platform/password"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, password.Verify(hash, "correct horse battery staple"))
	assert.False(t, password.Verify(hash, "wrong password"))
}

func TestScore_RejectsUserInput(t *testing.T) {
	assert.Equal(t, 0, password.Score("alice@example.com-but-longer", "alice@example.com"))
}

func TestScore_RewardsLengthAndDiversity(t *testing.T) {
	assert.Less(t, password.Score("short"), password.Score("LongAndDiverse!123"))
	assert.GreaterOrEqual(t, password.Score("Tr0ub4dor&3xtraLength!"), password.MinScore)
}

func TestScore_PenalizesSingleCharacterClass(t *testing.T) {
	assert.Less(t, password.Score("aaaaaaaaaaaaaaaa"), password.Score("Aa1!Aa1!Aa1!"))
}
