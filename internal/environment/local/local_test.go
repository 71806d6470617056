package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nullbridge/testforge/internal/environment"
)

func TestLocal_ExecuteCapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()

	env, err := New(context.Background(), environment.Options{SpecName: "t", Distribution: "ubuntu"})
	require.NoError(t, err)

	result, err := env.Execute(context.Background(), "echo hello && exit 0", 5*time.Second)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "hello", result.Stdout)
}

func TestLocal_ExecuteNonZeroExitIsNotError(t *testing.T) {
	t.Parallel()

	env, err := New(context.Background(), environment.Options{SpecName: "t", Distribution: "ubuntu"})
	require.NoError(t, err)

	result, err := env.Execute(context.Background(), "exit 7", 5*time.Second)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 7, result.ExitCode)
}

func TestLocal_FileRoundTrip(t *testing.T) {
	t.Parallel()

	env, err := New(context.Background(), environment.Options{SpecName: "t", Distribution: "ubuntu"})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, env.WriteFile(context.Background(), path, []byte("hi")))
	exists, err := env.FileExists(context.Background(), path)
	require.NoError(t, err)
	require.True(t, exists)

	data, err := env.ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))
}

func TestLocal_CopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(source, []byte("payload"), 0o644))

	env, err := New(context.Background(), environment.Options{SpecName: "t", Distribution: "ubuntu"})
	require.NoError(t, err)
	require.NoError(t, env.CopyFile(context.Background(), source, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestLocal_DestroyIsNoop(t *testing.T) {
	t.Parallel()

	env, err := New(context.Background(), environment.Options{SpecName: "t", Distribution: "ubuntu"})
	require.NoError(t, err)
	require.NoError(t, env.Destroy(context.Background()))
}
