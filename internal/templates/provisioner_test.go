package templates_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ganot/feeflow/internal/templates"
	"github.com/stretchr/testify/require"
)

func TestProvisioner_CopiesSelectedFolders(t *testing.T) {
	src := t.TempDir()
	for _, dir := range []string{"03 Contract/Signed", "04 Deliverables", "99 Temp", "50 Unrelated"} {
		require.NoError(t, os.MkdirAll(filepath.Join(src, dir), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "03 Contract", "readme.txt"), []byte("sign here"), 0o644))

	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "04 Deliverables"), 0o755))

	p, err := templates.NewProvisioner(src, nil, nil)
	require.NoError(t, err)

	copied, err := p.ProvisionTemplates(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, []string{"03 Contract", "99 Temp"}, copied)
	require.FileExists(t, filepath.Join(target, "03 Contract", "readme.txt"))
	require.DirExists(t, filepath.Join(target, "03 Contract", "Signed"))
	require.NoDirExists(t, filepath.Join(target, "50 Unrelated"))
}

func TestProvisioner_GlobPatterns(t *testing.T) {
	src := t.TempDir()
	for _, dir := range []string{"03 Contract", "04 Deliverables", "98 Outgoing"} {
		require.NoError(t, os.MkdirAll(filepath.Join(src, dir), 0o755))
	}

	p, err := templates.NewProvisioner(src, []string{"0[0-9] *"}, nil)
	require.NoError(t, err)

	copied, err := p.ProvisionTemplates(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Equal(t, []string{"03 Contract", "04 Deliverables"}, copied)
}

func TestProvisioner_MissingSource(t *testing.T) {
	p, err := templates.NewProvisioner(filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.NoError(t, err)

	_, err = p.ProvisionTemplates(context.Background(), t.TempDir())
	require.ErrorIs(t, err, templates.ErrSourceMissing)
}

func TestNewProvisioner_RejectsBadPattern(t *testing.T) {
	_, err := templates.NewProvisioner(t.TempDir(), []string{"[unclosed"}, nil)
	require.Error(t, err)
}
