// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticContext_AllowsEverything(t *testing.T) {
	assert.True(t, Static.Allows(PermSessionCreate))
	assert.True(t, Static.Allows("anything:at-all"))
	assert.Equal(t, "", Static.TokenID())
}

func TestManagedContext_RespectsPermissions(t *testing.T) {
	ctx := NewManagedContext("t1", []string{PermSessionRead})
	assert.True(t, ctx.Allows(PermSessionRead))
	assert.False(t, ctx.Allows(PermSessionCancel))
	assert.Equal(t, "t1", ctx.TokenID())
}

func TestManagedContext_Wildcard(t *testing.T) {
	ctx := NewManagedContext("t1", []string{PermGroupAny})
	assert.True(t, ctx.Allows("group:delete"))
	assert.False(t, ctx.Allows("queue:delete"))
}
