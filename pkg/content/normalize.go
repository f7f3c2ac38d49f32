package content

import "strings"

// NormalizeImageKey maps the legacy empty-string key to nil.
func NormalizeImageKey(key *string) *string {
	if key == nil || *key == "" {
		return nil
	}
	return key
}

func normalizeText(s string) string {
	return strings.TrimSpace(s)
}

func normalizeOptionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := normalizeText(*s)
	return &v
}

// NormalizeRecord clears an empty image key in place and returns rec.
func NormalizeRecord(rec *Record) *Record {
	if rec != nil {
		rec.ImageKey = NormalizeImageKey(rec.ImageKey)
	}
	return rec
}
