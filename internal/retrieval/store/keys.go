package store

import (
	"regexp"
	"strings"

	"github.com/kart-io/retrieval-x/internal/model"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeKey makes one key segment safe: slashes are removed and every
// character outside [A-Za-z0-9._-] is stripped. Segments consisting only
// of dots are emptied so they cannot address a parent.
func SanitizeKey(segment string) string {
	s := strings.ReplaceAll(segment, "/", "")
	s = unsafeKeyChars.ReplaceAllString(s, "")
	if strings.Trim(s, ".") == "" {
		return ""
	}
	return s
}

func joinKey(segments ...string) string {
	for i, s := range segments {
		segments[i] = SanitizeKey(s)
	}
	return strings.Join(segments, "/")
}

// MetaKey is the per-user metadata blob for one source type.
func MetaKey(user string, t model.SourceType) string {
	return joinKey(t.Plural()+"_meta", user)
}

// ChunkKey is the chunk blob of one source item.
func ChunkKey(user string, t model.SourceType, id string) string {
	return joinKey("embeddings", t.Plural(), user, id)
}

// ChunkPrefix covers every chunk blob of a user for one source type.
func ChunkPrefix(user string, t model.SourceType) string {
	return joinKey("embeddings", t.Plural(), user) + "/"
}

// ContentKey is the raw binary of an uploaded document.
func ContentKey(user, id string) string {
	return joinKey("documents", user, id)
}

// QueryLogKey is the per-user log of answered questions.
func QueryLogKey(user string) string {
	return joinKey("user_metrics", user)
}
