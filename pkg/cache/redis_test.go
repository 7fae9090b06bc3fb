package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyAndPattern(t *testing.T) {
	assert.Equal(t, "regionops:performance:region:r1", Key("performance", "region", "r1"))
	assert.Equal(t, "regionops:performance:*", Pattern("performance", ""))
}
