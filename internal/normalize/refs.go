package normalize

import "strings"

// ReduceReference reduces a compound resource reference to its trailing ID
// segment, which is the join key against the patient row. Both URN-style
// ("urn:uuid:abc-123") and path-style ("Patient/abc-123") references are
// handled by splitting on ':' then '/' and taking the final segment. A
// separator-free string is returned as-is; an empty reference reduces to "".
func ReduceReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}
