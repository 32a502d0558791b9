package session

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/cortexmem/engine/uri"
)

// randomSuffix generates a short, filesystem-safe random suffix for
// timeline filenames, disambiguating two messages appended within the same
// second. Grounded on the teacher's id-generation conventions elsewhere in
// the repo (google/uuid for record ids); here a raw crypto/rand source is
// sufficient since only a handful of bits of collision resistance are
// needed per second-bucket, not a globally unique identifier.
func randomSuffix() string {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "000000000"
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:]))
}

// timelineURI builds the path for one appended message (spec §4.6):
// cortex://session/{thread_id}/timeline/<YYYY-MM>/<DD>/<HH_MM_SS>_<rand>.md
func timelineURI(threadID string, at time.Time) uri.URI {
	at = at.UTC()
	month := at.Format("2006-01")
	day := at.Format("02")
	stamp := fmt.Sprintf("%s_%s.md", at.Format("15_04_05"), randomSuffix())
	return uri.URI{Dimension: uri.DimensionSession, Segments: []string{threadID, "timeline", month, day, stamp}}
}

func sessionFileURI(threadID string) uri.URI {
	return uri.URI{Dimension: uri.DimensionSession, Segments: []string{threadID, uri.SessionFile}}
}

func timelineRootURI(threadID string) uri.URI {
	return uri.URI{Dimension: uri.DimensionSession, Segments: []string{threadID, "timeline"}}
}

// threadRootURI is the thread's base URI (cortex://session/{thread_id}),
// the argument shape layers.Generator.EnsureTimelineLayers expects since it
// joins "timeline" itself.
func threadRootURI(threadID string) uri.URI {
	return uri.URI{Dimension: uri.DimensionSession, Segments: []string{threadID}}
}
