package runner

import (
	"errors"
	"testing"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildContainer(t *testing.T) {
	t.Run("runner without sink", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/a.txt", aliceText(), 0o644))
		injector := BuildContainer(zap.NewNop(), fsys, DefaultConfig())

		r, err := do.Invoke[*Runner](injector)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), r.Config())

		_, err = r.EncodeFile(t.Context(), Request{InputPath: "/a.txt", OutputPath: "/a.txt.lzfse"})
		require.NoError(t, err)
	})

	t.Run("runner publishes to provided sink", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/a.txt", aliceText(), 0o644))
		injector := BuildContainer(zap.NewNop(), fsys, DefaultConfig())
		sink := &recordingSink{}
		do.ProvideValue[engine.Sink](injector, sink)

		r := do.MustInvoke[*Runner](injector)
		_, err := r.EncodeFile(t.Context(), Request{InputPath: "/a.txt", OutputPath: "/a.txt.lzfse"})
		require.NoError(t, err)
		assert.Contains(t, sink.objects, "a.txt.lzfse")
	})

	t.Run("sink failure surfaces", func(t *testing.T) {
		injector := BuildContainer(zap.NewNop(), afero.NewMemMapFs(), DefaultConfig())
		do.Provide(injector, func(do.Injector) (engine.Sink, error) {
			return nil, errors.New("no credentials")
		})

		_, err := do.Invoke[*Runner](injector)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create sink")
		assert.Contains(t, err.Error(), "no credentials")
	})

	t.Run("invalid config surfaces", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Codec = "lzma"
		injector := BuildContainer(zap.NewNop(), afero.NewMemMapFs(), cfg)

		_, err := do.Invoke[*Runner](injector)
		assert.Error(t, err)
	})
}
