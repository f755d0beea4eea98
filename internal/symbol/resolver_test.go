package symbol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func helperTask() {}

func TestIdentityOf(t *testing.T) {
	assert.NotZero(t, IdentityOf(helperTask))
	assert.Equal(t, IdentityOf(helperTask), IdentityOf(helperTask))
	assert.Zero(t, IdentityOf(nil))
	assert.Zero(t, IdentityOf(42))

	var nilFn func()
	assert.Zero(t, IdentityOf(nilFn))
}

func TestResolver_RuntimeName(t *testing.T) {
	r := NewResolver()
	name := r.Resolve(IdentityOf(helperTask))
	assert.True(t, strings.HasSuffix(name, "symbol.helperTask"), name)

	// Second lookup is served from the cache.
	assert.Equal(t, name, r.Resolve(IdentityOf(helperTask)))
}

func TestResolver_RegisteredNameWins(t *testing.T) {
	r := NewResolver()
	id := IdentityOf(helperTask)
	r.Resolve(id)
	r.Register(id, "checks")
	assert.Equal(t, "checks", r.Resolve(id))

	r.Register(0, "ignored")
	r.Register(id, "")
	assert.Equal(t, "checks", r.Resolve(id))
}

func TestResolver_UnknownAddress(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "0x1", r.Resolve(1))
}
