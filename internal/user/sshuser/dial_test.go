package sshuser

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/km0e/dv/internal/sshconfig"
)

func TestOptionsFromHostDefaultsPort(t *testing.T) {
	h := &sshconfig.Host{HostName: "example.com"}
	opts := optionsFromHost("myhost", h, "secret")
	assert.Equal(t, "myhost", opts.Alias)
	assert.Equal(t, "22", opts.Port)
	assert.Equal(t, "example.com", opts.Host)
	assert.Equal(t, "secret", opts.Password)
}

func TestOptionsFromHostExplicitPort(t *testing.T) {
	h := &sshconfig.Host{HostName: "example.com", Port: "2222", User: "alice", IdentityFile: "/id_rsa"}
	opts := optionsFromHost("myhost", h, "")
	assert.Equal(t, "myhost", opts.Alias)
	assert.Equal(t, "2222", opts.Port)
	assert.Equal(t, "alice", opts.User)
	assert.Equal(t, "/id_rsa", opts.IdentityFile)
}

func TestOptionsFromHostFallsBackToAliasWhenNoHostName(t *testing.T) {
	h := &sshconfig.Host{}
	opts := optionsFromHost("myhost", h, "")
	assert.Equal(t, "myhost", opts.Alias)
	assert.Equal(t, "myhost", opts.Host)
}

func TestCurrentUserFallsBackToUsername(t *testing.T) {
	origUser, hadUser := os.LookupEnv("USER")
	origUsername, hadUsername := os.LookupEnv("USERNAME")
	defer func() {
		if hadUser {
			os.Setenv("USER", origUser)
		} else {
			os.Unsetenv("USER")
		}
		if hadUsername {
			os.Setenv("USERNAME", origUsername)
		} else {
			os.Unsetenv("USERNAME")
		}
	}()

	os.Unsetenv("USER")
	os.Setenv("USERNAME", "bob")
	assert.Equal(t, "bob", currentUser())

	os.Setenv("USER", "alice")
	assert.Equal(t, "alice", currentUser())
}
