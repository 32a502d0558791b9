package update

import (
	"strconv"

	"github.com/cortexmem/engine/types"
)

// idMap maps temporary indices onto real memory ids before prompting (spec
// §4.3): the LLM is instructed to refer only to the indices of the
// existing-memories list handed to it in the prompt, never to real ids
// directly. The mapping is one-way; there is no real-id -> index lookup.
type idMap struct {
	tempToReal map[string]string
}

func newIDMap(existing []types.Memory) *idMap {
	m := &idMap{tempToReal: make(map[string]string, len(existing))}
	for i, mem := range existing {
		m.tempToReal[strconv.Itoa(i)] = mem.ID
	}
	return m
}

// resolve maps a list of temporary indices (as emitted by the LLM) onto
// real memory ids, silently dropping anything unresolvable. The caller is
// responsible for applying the downgrade ladder when too few ids resolve.
func (m *idMap) resolve(tempIDs []string) []string {
	out := make([]string, 0, len(tempIDs))
	for _, t := range tempIDs {
		if real, ok := m.tempToReal[t]; ok {
			out = append(out, real)
		}
	}
	return out
}
