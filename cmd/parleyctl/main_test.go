package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-parley/internal/auth"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET_KEY", "cli-secret")
	t.Setenv("JWT_ISSUER", "parley")

	tok := strings.TrimSpace(run(t, "token", "alice", "--ttl", "1h"))
	sub, err := auth.ValidateToken(tok, []byte("cli-secret"), "parley")
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))

	assert.Contains(t, run(t, "migrate"), "schema up to date")
}
