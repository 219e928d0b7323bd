package climate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownKind(t *testing.T) {
	for _, k := range []Kind{KindFan, KindHeater, KindHumidifier, KindDehumidifier} {
		assert.True(t, KnownKind(k), string(k))
	}
	assert.False(t, KnownKind("chiller"))
	assert.False(t, KnownKind(""))
}

func TestKnownStalePolicy(t *testing.T) {
	assert.True(t, KnownStalePolicy(StaleHold))
	assert.True(t, KnownStalePolicy(StaleForceOff))
	assert.False(t, KnownStalePolicy("panic"))
	assert.False(t, KnownStalePolicy(""))
}
