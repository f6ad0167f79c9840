package sshconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Host one
  HostName 127.1.1.20
  User onedv
  IdentityFile ~/.ssh/id_ed123

Host jump
  HostName bastion.example.com
  User ops

Host behind-jump
  HostName 10.0.0.5
  User ops
  ProxyJump jump
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	one := cfg.Lookup("one")
	require.NotNil(t, one)
	assert.Equal(t, "127.1.1.20", one.HostName)
	assert.Equal(t, "onedv", one.User)
	assert.Equal(t, "~/.ssh/id_ed123", one.IdentityFile)

	behind := cfg.Lookup("behind-jump")
	require.NotNil(t, behind)
	assert.Equal(t, "jump", behind.ProxyJump)
}

func TestLookupMissing(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Nil(t, cfg.Lookup("nope"))
}
