package utils_test

import (
	"testing"

	"github.com/robalyx/roprofile/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestProfileURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.roblox.com/users/156/profile", utils.ProfileURL(156))
}
