package layers_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/layers"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/uri"
)

// Property 3: for any directory holding at least one non-empty content
// file, Generate always leaves behind both the L0 abstract and the L1
// overview, each carrying a parseable "Added" stamp, no matter how many
// files or how varied their content.
func TestProperty_GenerateAlwaysProducesStampedLayers(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		fsys := fs.NewMemFS(fs.MemFSConfig{}, nil)

		fileCount := rapid.IntRange(1, 6).Draw(rt, "fileCount")
		for i := 0; i < fileCount; i++ {
			name := fmt.Sprintf("note%d.md", i)
			content := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 .,'\n]{0,200}`).Draw(rt, "content")
			require.NoError(rt, fsys.Write(ctx, "cortex://user/u1/notes/"+name, content))
		}

		chat := llmchat.NewScriptedProvider("abstract body", "overview body")
		gen := layers.New(fsys, chat, layers.Config{}, nil)

		dir := uri.MustParse("cortex://user/u1/notes")
		ok, err := gen.Generate(ctx, dir)
		require.NoError(rt, err)
		require.True(rt, ok)

		has, err := gen.HasLayers(ctx, dir)
		require.NoError(rt, err)
		require.True(rt, has, "both L0 and L1 must exist after Generate")

		abstract, _, err := fsys.Read(ctx, dir.Join(uri.AbstractFile).String())
		require.NoError(rt, err)
		overview, _, err := fsys.Read(ctx, dir.Join(uri.OverviewFile).String())
		require.NoError(rt, err)

		require.Regexp(rt, `\*\*Added\*\*:\s*\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\s*UTC`, abstract)
		require.Regexp(rt, `\*\*Added\*\*:\s*\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\s*UTC`, overview)
	})
}
